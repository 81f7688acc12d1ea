// deskctl is an interactive terminal control panel for a height-adjustable
// desk: live height and motion readout, preset and nudge keys, and renaming.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/upliftdesk/godesk"
	_ "github.com/upliftdesk/godesk/pkg/desks/all"
	"github.com/upliftdesk/godesk/pkg/desks/mock"
)

func main() {
	useMock := flag.Bool("mock", false, "drive a simulated desk instead of scanning")
	scanFor := flag.Duration("scan", 10*time.Second, "how long to scan for a desk")
	flag.Parse()

	desk, err := findDesk(*useMock, *scanFor)
	if err != nil {
		log.Fatalf("Fatal: %v", err)
	}

	log.Printf("Connecting to %s (%s)...", desk.DeviceName(), desk.Address())
	if err := desk.Connect(); err != nil {
		log.Fatalf("Fatal: could not connect: %v", err)
	}
	defer func() {
		if err := desk.Disconnect(); err != nil {
			log.Printf("Error disconnecting: %v", err)
		}
	}()

	p := tea.NewProgram(newModel(desk))

	heightToken := desk.Subscribe(godesk.EventHeightChanged, func(s godesk.State) {
		p.Send(stateMsg(s))
	})
	ackToken := desk.Subscribe(godesk.EventNameAcknowledged, func(s godesk.State) {
		p.Send(nameAckMsg{})
	})
	defer desk.Unsubscribe(godesk.EventHeightChanged, heightToken)
	defer desk.Unsubscribe(godesk.EventNameAcknowledged, ackToken)

	if _, err := p.Run(); err != nil {
		log.Fatalf("Fatal: %v", err)
	}
}

func findDesk(useMock bool, scanFor time.Duration) (godesk.Desk, error) {
	if useMock {
		return godesk.NewDeskForDevice(&godesk.FoundDevice{
			Name:    "MOCK-DESK",
			Service: mock.ServiceUUID,
		})
	}

	device, err := godesk.ScanForOne(scanFor)
	if err != nil {
		return nil, err
	}
	log.Printf("Found %s - %s", device.Name, device.Address.String())
	return godesk.NewDeskForDevice(device)
}

type stateMsg godesk.State

type nameAckMsg struct{}

type statusMsg string

type errMsg struct{ err error }

type model struct {
	desk godesk.Desk

	height float64
	moving bool
	status string

	renaming  bool
	nameInput []rune
}

func newModel(desk godesk.Desk) model {
	return model{
		desk:   desk,
		status: "connected",
	}
}

func (m model) Init() tea.Cmd {
	// Poll once so the display has a height before the first notification.
	return m.do("read height", func() error {
		_, err := m.desk.ReadHeight()
		return err
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stateMsg:
		m.height = msg.Height
		m.moving = msg.Moving
		return m, nil

	case nameAckMsg:
		m.status = "desk acknowledged rename"
		return m, nil

	case statusMsg:
		m.status = string(msg)
		return m, nil

	case errMsg:
		m.status = fmt.Sprintf("error: %v", msg.err)
		return m, nil

	case tea.KeyMsg:
		if m.renaming {
			return m.updateRename(msg)
		}
		return m.updateKeys(msg)
	}

	return m, nil
}

func (m model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "u":
		return m, m.do("moving to standing preset", m.desk.MoveToStanding)
	case "d":
		return m, m.do("moving to sitting preset", m.desk.MoveToSitting)
	case "r":
		return m, m.do("raise pressed", m.desk.PressRaise)
	case "l":
		return m, m.do("lower pressed", m.desk.PressLower)
	case "n":
		desk := m.desk
		return m, func() tea.Msg {
			name, err := desk.ReadDeviceName()
			if err != nil {
				return errMsg{err}
			}
			return statusMsg("device name: " + name)
		}
	case "w":
		m.renaming = true
		m.nameInput = nil
		return m, nil
	}
	return m, nil
}

func (m model) updateRename(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		name := string(m.nameInput)
		m.renaming = false
		desk := m.desk
		return m, func() tea.Msg {
			if err := desk.Rename(name); err != nil {
				return errMsg{err}
			}
			return statusMsg(fmt.Sprintf("rename to %q sent", name))
		}
	case tea.KeyEsc:
		m.renaming = false
		return m, nil
	case tea.KeyBackspace:
		if len(m.nameInput) > 0 {
			m.nameInput = m.nameInput[:len(m.nameInput)-1]
		}
		return m, nil
	case tea.KeySpace:
		m.nameInput = append(m.nameInput, ' ')
		return m, nil
	case tea.KeyRunes:
		m.nameInput = append(m.nameInput, msg.Runes...)
		return m, nil
	}
	return m, nil
}

// do runs a desk operation off the update loop and reports the outcome.
func (m model) do(status string, op func() error) tea.Cmd {
	return func() tea.Msg {
		if err := op(); err != nil {
			return errMsg{err}
		}
		return statusMsg(status)
	}
}

func (m model) View() string {
	motion := "idle"
	if m.moving {
		motion = "MOVING"
	}

	s := fmt.Sprintf("%s  (%s)\n\n", m.desk.DisplayName(), m.desk.DeviceName())
	s += fmt.Sprintf("  height: %5.1f in   [%s]\n", m.height, motion)
	s += fmt.Sprintf("  status: %s\n\n", m.status)

	if m.renaming {
		s += fmt.Sprintf("  new name: %s_\n  (enter to confirm, esc to cancel)\n", string(m.nameInput))
		return s
	}

	s += "  u: stand   d: sit   r: raise   l: lower\n"
	s += "  n: read name   w: rename   q: quit\n"
	return s
}
