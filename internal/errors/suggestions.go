package errors

import (
	"fmt"
	"strings"
)

// ============================================================================
// 修复建议
// ============================================================================

// SuggestionsFor 返回错误码对应的通用修复建议
func SuggestionsFor(code string, context map[string]string) []string {
	switch code {
	case E0800, E0803, E0804:
		return []string{
			fmt.Sprintf("change the return type of '%s' to match the overridden method", context["method"]),
		}
	case E0801:
		return []string{"remove the final modifier from the overridden method, or rename this method"}
	case E0802:
		return []string{"make both methods static or both instance methods"}
	case E0820, E0822, E0821:
		return []string{"rename one of the methods, or remove the default parameter value"}
	case E0840:
		return []string{"identifiers must not contain '.', ';', '[', '/', '<' or '>'"}
	case E0841:
		return []string{"assign final fields only in a constructor or static initializer"}
	case E0843:
		if similar := context["similar"]; similar != "" {
			return []string{fmt.Sprintf("did you mean '%s'?", similar)}
		}
		return []string{"check the method name and the number of arguments"}
	case E0844:
		return []string{"break and continue may only appear inside a loop or switch"}
	case E0845:
		if similar := context["similar"]; similar != "" {
			return []string{fmt.Sprintf("did you mean label '%s'?", similar)}
		}
	}
	return nil
}

// ============================================================================
// 相似名称查找
// ============================================================================

// FindSimilar 查找相似的名称
func FindSimilar(name string, candidates []string, maxDistance int) string {
	if len(candidates) == 0 {
		return ""
	}

	bestMatch := ""
	bestDistance := maxDistance + 1

	for _, candidate := range candidates {
		distance := levenshteinDistance(name, candidate)
		if distance < bestDistance {
			bestDistance = distance
			bestMatch = candidate
		}
	}

	if bestDistance <= maxDistance {
		return bestMatch
	}
	return ""
}

// levenshteinDistance 计算 Levenshtein 编辑距离
func levenshteinDistance(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	// 忽略大小写比较
	s1 = strings.ToLower(s1)
	s2 = strings.ToLower(s2)

	prev := make([]int, len(s2)+1)
	cur := make([]int, len(s2)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(s1); i++ {
		cur[0] = i
		for j := 1; j <= len(s2); j++ {
			cost := 0
			if s1[i-1] != s2[j-1] {
				cost = 1
			}
			cur[j] = min(
				prev[j]+1,      // 删除
				cur[j-1]+1,     // 插入
				prev[j-1]+cost, // 替换
			)
		}
		prev, cur = cur, prev
	}

	return prev[len(s2)]
}
