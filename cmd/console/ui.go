package main

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/jwebster45206/branch-engine/pkg/butterfly"
	"github.com/jwebster45206/branch-engine/pkg/narrative"
)

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config        *ConsoleConfig
	client        *http.Client
	result        *resolutionResult
	catalog       []narrative.Choice
	storyViewport viewport.Model
	metaViewport  viewport.Model
	ready         bool
	width         int
	height        int
	err           error
	loading       bool
	log           []string
	statusLine    string
}

type resolutionMsg struct {
	result *resolutionResult
	err    error
}

type butterflyMsg struct {
	analysis *butterfly.Analysis
	err      error
}

var (
	storyPanelStyle = lipgloss.NewStyle().
			PaddingTop(1).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(1).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	narratorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	choiceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey
)

// NewConsoleUI creates the UI from a freshly created branch.
func NewConsoleUI(cfg *ConsoleConfig, client *http.Client, created *createBranchResponse) *ConsoleUI {
	ui := &ConsoleUI{
		config: cfg,
		client: client,
		result: &resolutionResult{
			Branch:      created.Branch,
			NextCatalog: created.Catalog,
		},
		catalog: created.Catalog,
		log: []string{
			created.Branch.Name,
			created.Branch.Description,
		},
	}
	return ui
}

func (ui *ConsoleUI) Init() tea.Cmd {
	return nil
}

func (ui *ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		ui.width = msg.Width
		ui.height = msg.Height
		storyWidth := ui.width * 2 / 3
		metaWidth := ui.width - storyWidth
		if !ui.ready {
			ui.storyViewport = viewport.New(storyWidth, ui.height-4)
			ui.metaViewport = viewport.New(metaWidth, ui.height-4)
			ui.ready = true
		} else {
			ui.storyViewport.Width = storyWidth
			ui.storyViewport.Height = ui.height - 4
			ui.metaViewport.Width = metaWidth
			ui.metaViewport.Height = ui.height - 4
		}
		ui.refreshViewports()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return ui, tea.Quit
		case "c":
			if err := clipboard.WriteAll(ui.result.Branch.ID.String()); err != nil {
				ui.statusLine = "Clipboard unavailable"
			} else {
				ui.statusLine = "Branch ID copied to clipboard"
			}
		case "b":
			branchID := ui.result.Branch.ID.String()
			return ui, func() tea.Msg {
				analysis, err := getButterflyAnalysis(ui.client, ui.config.APIBaseURL, branchID)
				return butterflyMsg{analysis: analysis, err: err}
			}
		case "1", "2", "3", "4", "5", "6", "7", "8", "9":
			if ui.loading {
				break
			}
			idx := int(msg.String()[0] - '1')
			if idx < len(ui.catalog) {
				return ui, ui.resolve(ui.catalog[idx])
			}
		}

	case butterflyMsg:
		if msg.err != nil {
			ui.statusLine = "Butterfly analysis unavailable"
			break
		}
		ui.result.Analysis = *msg.analysis
		ui.statusLine = fmt.Sprintf("Systemic risk %.0f%%", msg.analysis.SystemicRisk*100)
		ui.refreshViewports()

	case resolutionMsg:
		ui.loading = false
		if msg.err != nil {
			ui.err = msg.err
			ui.refreshViewports()
			break
		}
		ui.err = nil
		ui.result = msg.result
		ui.catalog = msg.result.NextCatalog
		ui.appendResolution(msg.result)
		ui.refreshViewports()
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	ui.storyViewport, cmd = ui.storyViewport.Update(msg)
	cmds = append(cmds, cmd)
	ui.metaViewport, cmd = ui.metaViewport.Update(msg)
	cmds = append(cmds, cmd)
	return ui, tea.Batch(cmds...)
}

// resolve posts the selected choice and reports back as a message.
func (ui *ConsoleUI) resolve(choice narrative.Choice) tea.Cmd {
	ui.loading = true
	ui.log = append(ui.log, choiceStyle.Render("> "+choice.Text))
	ui.refreshViewports()
	branchID := ui.result.Branch.ID.String()
	return func() tea.Msg {
		result, err := resolveChoice(ui.client, ui.config.APIBaseURL, branchID, choice.ID)
		return resolutionMsg{result: result, err: err}
	}
}

func (ui *ConsoleUI) appendResolution(result *resolutionResult) {
	if result.Derailed && result.FiredHatch != nil {
		ui.log = append(ui.log,
			warnStyle.Render("The story lurches off its rails..."),
			narratorStyle.Render(result.Branch.Description))
		if result.FiredHatch.EmergencyNarrative.OpeningNarration != "" {
			ui.log = append(ui.log, narratorStyle.Render(result.FiredHatch.EmergencyNarrative.OpeningNarration))
		}
	}
	if result.ForcedConvergence != nil {
		ui.log = append(ui.log,
			warnStyle.Render(fmt.Sprintf("The timelines pull together (%s).", result.ForcedConvergence.ID)))
	}
	if result.Analysis.ButterflyStorm {
		ui.log = append(ui.log,
			warnStyle.Render("Distant consequences are converging into a storm."))
	}
	for _, effect := range result.Analysis.ActiveEffects {
		ui.log = append(ui.log,
			narratorStyle.Render("A past choice manifests: "+effect.UltimateImpact))
	}
	if len(result.NextCatalog) == 0 {
		ui.log = append(ui.log, titleStyle.Render("This arc of the story has ended."))
	}
}

func (ui *ConsoleUI) refreshViewports() {
	if !ui.ready {
		return
	}

	wrap := ui.storyViewport.Width - 4
	if wrap < 20 {
		wrap = 20
	}

	var sb strings.Builder
	for _, line := range ui.log {
		sb.WriteString(wordwrap.String(line, wrap))
		sb.WriteString("\n\n")
	}
	if ui.err != nil {
		sb.WriteString(errorStyle.Render(wordwrap.String(ui.err.Error(), wrap)))
		sb.WriteString("\n\n")
	}
	if ui.loading {
		sb.WriteString(warnStyle.Render("The story considers your choice..."))
	} else {
		for i, c := range ui.catalog {
			sb.WriteString(choiceStyle.Render(fmt.Sprintf("%d) ", i+1)))
			sb.WriteString(wordwrap.String(c.Text, wrap))
			sb.WriteString("\n")
		}
	}
	ui.storyViewport.SetContent(sb.String())
	ui.storyViewport.GotoBottom()

	ui.metaViewport.SetContent(ui.metaContent())
}

func (ui *ConsoleUI) metaContent() string {
	b := ui.result.Branch
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(b.Name))
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "Episode: %d\n", b.CurrentEpisode)
	fmt.Fprintf(&sb, "Premise progression: %.0f%%\n", b.WorldState.PremiseProgression)
	fmt.Fprintf(&sb, "Derailment risk: %d/10\n", b.DerailmentRisk)
	fmt.Fprintf(&sb, "Thematic shift: %s\n", b.ThematicShift)
	fmt.Fprintf(&sb, "Choices resolved: %d\n", len(b.ChoiceHistory))

	if len(ui.result.Analysis.EmergingEffects) > 0 {
		sb.WriteString("\n")
		sb.WriteString(warnStyle.Render("Emerging consequences:"))
		sb.WriteString("\n")
		for _, e := range ui.result.Analysis.EmergingEffects {
			fmt.Fprintf(&sb, "  %.0f%% %s\n", e.CurrentProbability*100, e.UltimateImpact)
		}
	}

	if ui.result.Quantum != nil {
		sb.WriteString("\n")
		sb.WriteString(warnStyle.Render("The next moment is unresolved:"))
		sb.WriteString("\n")
		sb.WriteString(ui.result.Quantum.Text)
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(promptStyle.Render("1-9 choose | b butterfly | c copy branch id | q quit"))
	if ui.statusLine != "" {
		sb.WriteString("\n")
		sb.WriteString(promptStyle.Render(ui.statusLine))
	}
	return sb.String()
}

func (ui *ConsoleUI) View() string {
	if !ui.ready {
		return "Loading..."
	}

	story := storyPanelStyle.Render(ui.storyViewport.View())
	meta := metaPanelStyle.Render(ui.metaViewport.View())
	return lipgloss.JoinHorizontal(lipgloss.Top, story, meta)
}
