package presentation

import (
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"noisevpn/presentation/bubble_tea"
)

// resolveConfigPath returns defaultPath if it exists, otherwise prompts
// interactively for a path via a bubbletea text area, mirroring the
// teacher's fallback-to-interactive-prompt behavior when a well-known
// config location isn't present.
func resolveConfigPath(defaultPath string) (string, error) {
	if _, err := os.Stat(defaultPath); err == nil {
		return defaultPath, nil
	}

	area := bubble_tea.NewTextArea(fmt.Sprintf("%s not found — enter config path and press Enter", defaultPath))
	result, err := tea.NewProgram(area).Run()
	if err != nil {
		return "", fmt.Errorf("config path prompt: %w", err)
	}
	chosen, ok := result.(*bubble_tea.TextArea)
	if !ok {
		return "", fmt.Errorf("config path prompt: unexpected result type %T", result)
	}
	path := strings.TrimSpace(chosen.Value())
	if path == "" {
		return "", fmt.Errorf("no config path entered")
	}
	return path, nil
}
