// Package menu assembles the declarative action menu for a timer. The view
// layer is the only place that turns the description into platform UI.
package menu

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/punchclock/punch/internal/models"
	"github.com/punchclock/punch/internal/timeutil"
)

// Action identifies what a menu item does when activated.
type Action string

const (
	ActionPost       Action = "post"
	ActionOpenTicket Action = "open-ticket"
	ActionTransition Action = "transition"
	ActionEditTime   Action = "edit-time"
	ActionDelete     Action = "delete"
)

// Item is one entry in a menu description. Either Action or Submenu is set.
type Item struct {
	Label   string
	Action  Action
	Target  string
	Submenu []Item
	Enabled bool
}

// TransitionLister fetches the allowed status transitions for a ticket.
type TransitionLister interface {
	Transitions(ctx context.Context, key string) ([]models.Transition, error)
	BrowseURL(key string) string
}

// Builder assembles action menus for timers.
type Builder struct {
	gateway TransitionLister
	logger  *slog.Logger

	// loading reports the transient "loading transitions" state to the
	// display layer. May be nil.
	loading func(bool)
}

// NewBuilder creates a menu builder. loading may be nil.
func NewBuilder(
	gateway TransitionLister,
	logger *slog.Logger,
	loading func(bool),
) *Builder {
	if logger == nil {
		logger = slog.Default()
	}

	if loading == nil {
		loading = func(bool) {}
	}

	return &Builder{
		gateway: gateway,
		logger:  logger,
		loading: loading,
	}
}

// Build fetches the available transitions for the timer's ticket and
// returns the menu description. A failed fetch degrades to a menu without
// the transition submenu; it never blocks the menu or surfaces an error.
func (b *Builder) Build(
	ctx context.Context,
	timer *models.Timer,
	elapsedSeconds int,
	posting bool,
) []Item {
	humanTime := timeutil.Human(
		timeutil.RoundToNearestMinutes(elapsedSeconds, 1) * 60,
	)

	items := []Item{
		{
			Label:   fmt.Sprintf("Post %s to JIRA", humanTime),
			Action:  ActionPost,
			Target:  timer.ID,
			Enabled: !posting,
		},
	}

	serviceMenu := []Item{
		{
			Label:   "Open in JIRA",
			Action:  ActionOpenTicket,
			Target:  b.gateway.BrowseURL(timer.Key),
			Enabled: true,
		},
	}

	b.loading(true)

	transitions, err := b.gateway.Transitions(ctx, timer.Key)

	b.loading(false)

	if err != nil {
		// cosmetic: the submenu is simply omitted
		b.logger.Warn("fetching transitions failed",
			"key", timer.Key,
			"error", err,
		)
	} else {
		sub := make([]Item, 0, len(transitions))

		for _, tr := range transitions {
			sub = append(sub, Item{
				Label:   tr.Name,
				Action:  ActionTransition,
				Target:  tr.ID,
				Enabled: true,
			})
		}

		serviceMenu = append(serviceMenu, Item{
			Label:   "Transition status",
			Submenu: sub,
			Enabled: true,
		})
	}

	items = append(items,
		Item{Label: "JIRA", Submenu: serviceMenu, Enabled: true},
		Item{
			Label:   "Edit time",
			Action:  ActionEditTime,
			Target:  timer.ID,
			Enabled: true,
		},
		Item{
			Label:   "Delete timer",
			Action:  ActionDelete,
			Target:  timer.ID,
			Enabled: true,
		},
	)

	return items
}
