// Package textclean extracts the readable description from raw model output.
//
// Clean is a heuristic tuned to the log noise that FastVLM generation emits
// alongside the answer. It is not a parser and makes no promise about other
// models' output.
package textclean

import (
	"strings"
)

// MaxLines caps the number of lines kept from the end of the output.
const MaxLines = 10

// noisePrefixes are line prefixes printed by the inference stack, not the model.
var noisePrefixes = []string{
	"`torch_dtype`",
	"The following",
}

// Clean walks the output bottom-up, drops empty and noise lines, repairs
// invalid UTF-8 and collapses whitespace, keeping the last MaxLines survivors
// in their original order. If nothing survives the trimmed input is returned.
func Clean(raw string) string {
	trimmed := strings.TrimSpace(raw)
	lines := strings.Split(trimmed, "\n")

	kept := make([]string, 0, MaxLines)
	for i := len(lines) - 1; i >= 0 && len(kept) < MaxLines; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" || isNoise(line) {
			continue
		}
		line = strings.ToValidUTF8(line, "�")
		kept = append(kept, strings.Join(strings.Fields(line), " "))
	}
	if len(kept) == 0 {
		return trimmed
	}
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return strings.Join(kept, "\n")
}

func isNoise(line string) bool {
	for _, p := range noisePrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}
