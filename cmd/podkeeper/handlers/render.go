package handlers

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/imamik/podkeeper/internal/orchestration"
	"github.com/imamik/podkeeper/internal/pod"
)

var (
	colorGreen  = lipgloss.Color("#22c55e")
	colorRed    = lipgloss.Color("#ef4444")
	colorYellow = lipgloss.Color("#eab308")
	colorBlue   = lipgloss.Color("#3b82f6")
	colorDim    = lipgloss.Color("#6b7280")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorBlue)
	labelStyle = lipgloss.NewStyle().Foreground(colorDim)
	valueStyle = lipgloss.NewStyle().Foreground(colorGreen)
	dimStyle   = lipgloss.NewStyle().Foreground(colorDim)
)

// sshUser is the login user of RunPod images.
const sshUser = "root"

func statusStyle(s pod.Status) lipgloss.Style {
	switch s {
	case pod.StatusRunning:
		return lipgloss.NewStyle().Foreground(colorGreen)
	case pod.StatusTerminated:
		return lipgloss.NewStyle().Foreground(colorRed)
	case pod.StatusStopped, pod.StatusExited:
		return lipgloss.NewStyle().Foreground(colorYellow)
	default:
		return lipgloss.NewStyle().Foreground(colorDim)
	}
}

func renderStatus(s pod.Status) string {
	if s == "" {
		return dimStyle.Render("unknown")
	}
	return statusStyle(s).Render(string(s))
}

func printField(w io.Writer, label, value string) {
	fmt.Fprintf(w, "  %s %s\n", labelStyle.Render(fmt.Sprintf("%-9s", label+":")), value)
}

// printResolved prints a ready pod with everything needed to connect.
func printResolved(w io.Writer, p *pod.Resolved) {
	fmt.Fprintf(w, "%s  %s  %s\n", titleStyle.Render(p.Name), dimStyle.Render(p.ID), renderStatus(p.Status))
	if cmd, ok := p.SSHCommand(sshUser); ok {
		printField(w, "ssh", valueStyle.Render(cmd))
	}
	if url, ok := p.JupyterEndpoint(); ok {
		printField(w, "jupyter", valueStyle.Render(url))
	}
	if len(p.Ports) > 0 {
		printField(w, "ports", formatPorts(p.Ports))
	}
}

func formatPorts(ports map[int]pod.Endpoint) string {
	keys := make([]int, 0, len(ports))
	for k := range ports {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%d -> %s", k, ports[k]))
	}
	return strings.Join(parts, ", ")
}

// printRecord prints a stored or live pod record.
func printRecord(w io.Writer, label string, r *pod.Record) {
	if r == nil {
		printField(w, label, dimStyle.Render("none"))
		return
	}
	line := fmt.Sprintf("%s %s", r.ID, renderStatus(r.Status))
	if r.PublicIP != "" {
		line += " " + r.PublicIP
	}
	printField(w, label, line)
}

func printStatus(w io.Writer, s *orchestration.Status) {
	fmt.Fprintln(w, titleStyle.Render(s.Name))
	printRecord(w, "stored", s.Stored)
	printRecord(w, "live", s.Live)
	if s.Stored != nil {
		printField(w, "image", s.Stored.Image)
		if s.Drifted {
			printField(w, "drift", lipgloss.NewStyle().Foreground(colorYellow).Render("differs from the desired spec"))
		}
	}
	if s.Live != nil && len(s.Live.Ports) > 0 {
		printField(w, "ports", formatPorts(s.Live.Ports))
	}
	printField(w, "next", s.Next.String())
}

func printInventory(w io.Writer, entries []orchestration.InventoryEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, dimStyle.Render("No pods found."))
		return
	}
	for _, e := range entries {
		tracked := dimStyle.Render("untracked")
		if e.Tracked != "" {
			tracked = titleStyle.Render(e.Tracked)
		}
		name := e.Pod.Name
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(w, "%-16s %-24s %-14s %s\n", e.Pod.ID, name, renderStatus(e.Pod.Status), tracked)
	}
}

func printGPUTypes(w io.Writer, gpus []pod.GPUType) {
	if len(gpus) == 0 {
		fmt.Fprintln(w, dimStyle.Render("No GPU types found."))
		return
	}
	for _, g := range gpus {
		var clouds []string
		if g.SecureCloud {
			clouds = append(clouds, "secure")
		}
		if g.CommunityCloud {
			clouds = append(clouds, "community")
		}
		avail := dimStyle.Render("unavailable")
		if g.AvailableCount > 0 {
			avail = valueStyle.Render(fmt.Sprintf("%d available", g.AvailableCount))
		}
		fmt.Fprintf(w, "%-28s %4d GB  %-18s %s\n", g.ID, g.MemoryGB, strings.Join(clouds, ","), avail)
	}
}
