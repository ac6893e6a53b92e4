package telegram

import "strings"

const messageLimit = 4096

// SplitMessage разбивает текст на части в пределах лимита Telegram.
// Предпочитает резать по переводам строк, чтобы списки плана не рвались
// посреди пункта.
func SplitMessage(text string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	rest := []rune(trimmed)
	if len(rest) <= messageLimit {
		return []string{trimmed}
	}

	var parts []string
	for len(rest) > 0 {
		if len(rest) <= messageLimit {
			parts = appendChunk(parts, rest)
			break
		}

		// Ищем последний перевод строки в пределах лимита, чтобы
		// пункт плана не разрывался посередине.
		cut := messageLimit
		for i := messageLimit; i > 0; i-- {
			if rest[i-1] == '\n' {
				cut = i
				break
			}
		}

		parts = appendChunk(parts, rest[:cut])
		rest = rest[cut:]
		for len(rest) > 0 && rest[0] == '\n' {
			rest = rest[1:]
		}
	}

	if len(parts) == 0 {
		return []string{trimmed}
	}

	return parts
}

func appendChunk(parts []string, chunk []rune) []string {
	s := strings.Trim(string(chunk), "\n")
	if s == "" {
		return parts
	}
	return append(parts, s)
}
