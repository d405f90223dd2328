package errors

import (
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
)

// DiagnosticSource 诊断来源名
const DiagnosticSource = "classgen"

// ToDiagnostic 将编译错误转换为 LSP 诊断信息。
// LSP 行列从 0 开始，没有位置的错误落在文件首行。
func ToDiagnostic(err *CompileError) protocol.Diagnostic {
	line, col := uint32(0), uint32(0)
	if err.Line > 0 {
		line = uint32(err.Line - 1)
	}
	if err.Column > 0 {
		col = uint32(err.Column - 1)
	}

	severity := protocol.DiagnosticSeverityError
	switch err.Level {
	case LevelWarning:
		severity = protocol.DiagnosticSeverityWarning
	case LevelNote:
		severity = protocol.DiagnosticSeverityInformation
	case LevelHelp:
		severity = protocol.DiagnosticSeverityHint
	}

	message := err.Message
	for _, hint := range err.Hints {
		message += "\nhelp: " + hint
	}

	return protocol.Diagnostic{
		Range: protocol.Range{
			Start: protocol.Position{Line: line, Character: col},
			End:   protocol.Position{Line: line, Character: col + 1},
		},
		Severity: severity,
		Code:     err.Code,
		Source:   DiagnosticSource,
		Message:  message,
	}
}

// PublishParams 按文件分组生成 publishDiagnostics 参数
func PublishParams(errs []*CompileError) []protocol.PublishDiagnosticsParams {
	byFile := make(map[string][]protocol.Diagnostic)
	var order []string
	for _, err := range errs {
		if _, ok := byFile[err.File]; !ok {
			order = append(order, err.File)
		}
		byFile[err.File] = append(byFile[err.File], ToDiagnostic(err))
	}

	params := make([]protocol.PublishDiagnosticsParams, 0, len(order))
	for _, file := range order {
		params = append(params, protocol.PublishDiagnosticsParams{
			URI:         protocol.DocumentURI(uri.File(file)),
			Diagnostics: byFile[file],
		})
	}
	return params
}
