package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/gammadia/quartermaster/cluster"
	"github.com/gammadia/quartermaster/ledger"
	"github.com/gammadia/quartermaster/resource"
)

// runDashboard renders a live view of the simulated cluster. It returns when
// the simulation completes or the user quits, cancelling the simulation.
func runDashboard(cancel context.CancelFunc, sim *simulation, done <-chan struct{}) error {
	app := tview.NewApplication()

	// Header
	header := tview.NewTextView().
		SetDynamicColors(true).
		SetWordWrap(true).
		SetTextAlign(tview.AlignLeft)
	header.SetBorder(true).SetTitle(" Quartermaster ")

	// Nodes table
	nodesTable := tview.NewTable().
		SetFixed(1, 0).
		SetSelectable(true, false)
	nodesTable.SetBorder(true).SetTitle(" Nodes ")

	// Applications table
	appsTable := tview.NewTable().
		SetFixed(1, 0).
		SetSelectable(true, false)
	appsTable.SetBorder(true).SetTitle(" Applications ")

	// Activity log fed by the cluster event stream
	activity := tview.NewTextView().
		SetDynamicColors(true).
		SetMaxLines(200)
	activity.SetBorder(true).SetTitle(" Activity ")
	activity.ScrollToEnd()

	// Layout
	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(header, 4, 0, false).
		AddItem(nodesTable, 0, 1, false).
		AddItem(appsTable, 0, 1, false).
		AddItem(activity, 10, 0, false)

	// Focus cycling: Tab switches between the tables and the activity log
	focusables := []tview.Primitive{nodesTable, appsTable, activity}
	focusIndex := 0
	app.SetFocus(nodesTable)

	// Input handling
	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Rune() == 'q' {
			cancel()
			app.Stop()
			return nil
		}
		if event.Key() == tcell.KeyTab || event.Key() == tcell.KeyBacktab {
			if event.Key() == tcell.KeyBacktab {
				focusIndex = (focusIndex + len(focusables) - 1) % len(focusables)
			} else {
				focusIndex = (focusIndex + 1) % len(focusables)
			}
			app.SetFocus(focusables[focusIndex])
			return nil
		}
		return event
	})

	updateHeader := func() {
		header.Clear()

		capacity := sim.cluster.TotalCapacity()
		used := sim.cluster.TotalUsed()
		fmt.Fprintf(header, " [yellow]%s[white]  |  Uptime: [green]%s[white]\n",
			sim.cluster.Name(), formatDuration(time.Since(sim.started)))
		fmt.Fprintf(header, " Capacity: [yellow]%s[white]  |  Used: [yellow]%s[white]  |  Workload: [yellow]%d[white] containers",
			capacity, used, sim.opts.Containers)
	}

	updateNodes := func() {
		nodesTable.Clear()
		nodesTable.ScrollToBeginning()
		nodesTable.SetTitle(fmt.Sprintf(" Nodes (%d) ", sim.cluster.Size()))

		// Header row
		for col, title := range []string{"NAME", "CONTAINERS", "AVAILABLE", "USED", "RESERVED FOR"} {
			nodesTable.SetCell(0, col, tview.NewTableCell(title).
				SetTextColor(tcell.ColorYellow).
				SetSelectable(false).
				SetExpansion(1))
		}

		for row, node := range sim.cluster.Nodes() {
			usage := node.Usage()

			nodesTable.SetCell(row+1, 0, tview.NewTableCell(string(node.Name())).
				SetTextColor(tcell.ColorWhite).
				SetExpansion(1))
			nodesTable.SetCell(row+1, 1, tview.NewTableCell(fmt.Sprintf("%d", usage.Containers)).
				SetTextColor(tcell.ColorWhite).
				SetExpansion(1))
			nodesTable.SetCell(row+1, 2, tview.NewTableCell(usage.Available.String()).
				SetTextColor(tcell.ColorGreen).
				SetExpansion(2))
			nodesTable.SetCell(row+1, 3, tview.NewTableCell(usage.Used.String()).
				SetTextColor(tcell.ColorWhite).
				SetExpansion(2))

			reserved := "-"
			reservedColor := tcell.ColorGray
			if usage.Reserved != nil {
				reserved = usage.Reserved.Attempt().String()
				reservedColor = tcell.ColorYellow
			}
			nodesTable.SetCell(row+1, 4, tview.NewTableCell(reserved).
				SetTextColor(reservedColor).
				SetExpansion(2))
		}
	}

	updateApps := func() {
		appsTable.Clear()
		appsTable.ScrollToBeginning()
		appsTable.SetTitle(fmt.Sprintf(" Applications (%d) ", len(sim.apps)))

		// Header row
		for col, title := range []string{"NAME", "APPLICATION", "RUNNING", "FOOTPRINT"} {
			appsTable.SetCell(0, col, tview.NewTableCell(title).
				SetTextColor(tcell.ColorYellow).
				SetSelectable(false).
				SetExpansion(1))
		}

		running := map[cluster.AttemptID]int{}
		footprint := map[cluster.AttemptID]resource.Vector{}
		for _, node := range sim.cluster.Nodes() {
			for _, container := range node.RunningContainers() {
				attempt := container.Attempt()
				running[attempt]++
				footprint[attempt] = footprint[attempt].Add(container.Resources)
			}
		}

		for row, a := range sim.apps {
			appsTable.SetCell(row+1, 0, tview.NewTableCell(string(a.name)).
				SetTextColor(tcell.ColorAqua).
				SetExpansion(2))
			appsTable.SetCell(row+1, 1, tview.NewTableCell(a.attempt.App.String()).
				SetTextColor(tcell.ColorWhite).
				SetExpansion(2))
			appsTable.SetCell(row+1, 2, tview.NewTableCell(fmt.Sprintf("%d", running[a.attempt])).
				SetTextColor(tcell.ColorWhite).
				SetExpansion(1))

			usage := ""
			if !footprint[a.attempt].IsZero() {
				usage = footprint[a.attempt].String()
			}
			appsTable.SetCell(row+1, 3, tview.NewTableCell(usage).
				SetTextColor(tcell.ColorYellow).
				SetExpansion(2))
		}
	}

	updateAll := func() {
		updateHeader()
		updateNodes()
		updateApps()
	}

	// quit is closed when the dashboard stops, to signal goroutines to exit.
	quit := make(chan struct{})

	// Stop the dashboard once the simulation has drained
	go func() {
		select {
		case <-done:
			app.Stop()
		case <-quit:
		}
	}()

	// Event stream feeding the activity log. TextView writes are safe off the
	// event loop; the refresh ticker takes care of redrawing.
	events, unsubscribe := sim.cluster.Subscribe()
	defer unsubscribe()
	go func() {
		for {
			select {
			case <-quit:
				return
			case event := <-events:
				if line := renderEvent(event); line != "" {
					fmt.Fprintln(activity, line)
				}
			}
		}
	}()

	// Refresh ticker
	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-quit:
				return
			case <-ticker.C:
				app.QueueUpdateDraw(updateAll)
			}
		}
	}()

	updateAll()
	err := app.SetRoot(layout, true).Run()
	close(quit)
	return err
}

func renderEvent(event ledger.Event) string {
	switch e := event.(type) {
	case ledger.EventContainerAllocated:
		return fmt.Sprintf("[green]allocated[-] %s on %s (%s)", e.Container, e.Node, e.Resources)
	case ledger.EventContainerReleased:
		return fmt.Sprintf("[gray]released[-] %s on %s", e.Container, e.Node)
	case ledger.EventContainerReserved:
		return fmt.Sprintf("[yellow]reserved[-] %s for %s", e.Node, e.Attempt)
	case ledger.EventContainerUnreserved:
		return fmt.Sprintf("[yellow]unreserved[-] %s for %s", e.Node, e.Attempt)
	case ledger.EventNodeAdded:
		return fmt.Sprintf("node added %s (%s)", e.Node, e.Capacity)
	case ledger.EventNodeRemoved:
		return fmt.Sprintf("node removed %s", e.Node)
	}
	return ""
}

func formatDuration(d time.Duration) string {
	d = d.Truncate(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %02ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %02dm %02ds", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}
