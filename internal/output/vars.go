package output

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("37"))            // dark green
	summaryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))             // green
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))             // red
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))            // yellow
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))            // blue
	debugStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))           // light grey
	detailStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))            // purple
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69")) // purple
)

var StyleSymbols = map[string]string{
	"pass":    "✓",
	"fail":    "✗",
	"warning": "!",
	"pending": "◉",
	"bullet":  "•",
}

func PrintSuccess(text string) { fmt.Println(successStyle.Render(text)) }
func PrintError(text string)   { fmt.Println(errorStyle.Render(text)) }
func PrintWarning(text string) { fmt.Println(warningStyle.Render(text)) }
func PrintDetail(text string)  { fmt.Println(detailStyle.Render(text)) }

func FDebug(text string) string  { return debugStyle.Render(text) }
func FHeader(text string) string { return headerStyle.Render(text) }
