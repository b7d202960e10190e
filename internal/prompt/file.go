package prompt

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// DefaultClothingPrompt is used when no prompt file is available.
const DefaultClothingPrompt = "Опиши подробно какие предметы одежды ты видишь на этом изображении. " +
	"Какой тип, цвет, стиль и материал? Пожалуйста, отвечай на русском языке, используя точные термины моды."

// DefaultEnglishPrompt is used by the describe command when translation follows.
const DefaultEnglishPrompt = "Describe in detail what clothing items you see in this image. What type, color, style and material?"

var fenced = regexp.MustCompile("(?s)```\\s*(.*?)\\s*```")

// Extract returns the body of the first fenced block in content, or the whole
// trimmed content when there is none.
func Extract(content string) string {
	if m := fenced.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(content)
}

// LoadFile reads a prompt.md style file. An empty result is an error so callers
// can fall back to a default.
func LoadFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	p := Extract(string(b))
	if p == "" {
		return "", fmt.Errorf("prompt file %s is empty", path)
	}
	return p, nil
}

// LoadOrDefault returns the prompt stored at path or fallback, plus the error
// that forced the fallback (nil when the file was used).
func LoadOrDefault(path, fallback string) (string, error) {
	if path == "" {
		return fallback, nil
	}
	p, err := LoadFile(path)
	if err != nil {
		return fallback, err
	}
	return p, nil
}
