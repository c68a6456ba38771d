// Package ui provides terminal styling for the studysync CLI.
package ui

import "github.com/charmbracelet/lipgloss"

var (
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#2196F3")).Bold(true)
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#8BC34A"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFC107"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#E53935")).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))
	headerStyle = lipgloss.NewStyle().Bold(true)
)

// RenderAccent renders emphasized markers and identifiers.
func RenderAccent(s string) string { return accentStyle.Render(s) }

// RenderPass renders success markers.
func RenderPass(s string) string { return passStyle.Render(s) }

// RenderWarn renders warning markers.
func RenderWarn(s string) string { return warnStyle.Render(s) }

// RenderErr renders error markers.
func RenderErr(s string) string { return errStyle.Render(s) }

// RenderMuted renders secondary detail like timestamps.
func RenderMuted(s string) string { return mutedStyle.Render(s) }

// RenderHeader renders section headings.
func RenderHeader(s string) string { return headerStyle.Render(s) }
