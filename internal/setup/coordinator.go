// Package setup owns the ambient prompt and setup modal state for a session.
// Both live in one Coordinator so that a prompt and a modal are never visible
// at the same time.
package setup

import (
	"sync"

	"dealscout/investor-portal/portal-backend/internal/apperr"
	"dealscout/investor-portal/portal-backend/internal/preferences"
)

type PromptStatus string

const (
	PromptClosed  PromptStatus = "closed"
	PromptShowing PromptStatus = "showing"
)

// PromptState is closed or showing(category).
type PromptState struct {
	Status   PromptStatus              `json:"status"`
	Category preferences.SetupCategory `json:"category,omitempty"`
}

type ModalStatus string

const (
	ModalClosed ModalStatus = "closed"
	ModalOpen   ModalStatus = "open"
)

// ModalState is closed or open(category) together with the modal's unsaved input.
type ModalState struct {
	Status    ModalStatus               `json:"status"`
	Category  preferences.SetupCategory `json:"category,omitempty"`
	Draft     []string                  `json:"draft,omitempty"`
	Dirty     bool                      `json:"dirty"`
	Saving    bool                      `json:"saving"`
	LastError string                    `json:"last_error,omitempty"`
}

// Snapshot is a copy of a coordinator's state.
type Snapshot struct {
	Prompt     PromptState            `json:"prompt"`
	Modal      ModalState             `json:"modal"`
	Suppressed preferences.Categories `json:"suppressed"`
}

// Coordinator is the prompt and modal state machine for one session.
type Coordinator struct {
	mu         sync.Mutex
	prompt     PromptState
	modal      ModalState
	suppressed map[preferences.SetupCategory]struct{}
}

func NewCoordinator() *Coordinator {
	return &Coordinator{
		prompt:     PromptState{Status: PromptClosed},
		modal:      ModalState{Status: ModalClosed},
		suppressed: make(map[preferences.SetupCategory]struct{}),
	}
}

// Snapshot returns the current state.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Coordinator) snapshotLocked() Snapshot {
	modal := c.modal
	modal.Draft = append([]string(nil), c.modal.Draft...)
	suppressed := make(preferences.Categories, 0, len(c.suppressed))
	for _, cat := range preferences.AllCategories {
		if _, ok := c.suppressed[cat]; ok {
			suppressed = append(suppressed, cat)
		}
	}
	return Snapshot{Prompt: c.prompt, Modal: modal, Suppressed: suppressed}
}

// MaybeTrigger shows a prompt for the feature's relevant category when that
// category is incomplete, nothing else is on screen, and it was not dismissed
// earlier in this session. A suppressed category blocks the prompt outright;
// the feature's other candidates are not tried.
func (c *Coordinator) MaybeTrigger(feature string, incomplete preferences.Categories) PromptState {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.modal.Status == ModalOpen || c.prompt.Status == PromptShowing {
		return c.prompt
	}
	cat, ok := RelevantCategory(feature, incomplete)
	if !ok {
		return c.prompt
	}
	if _, dismissed := c.suppressed[cat]; dismissed {
		return c.prompt
	}
	c.prompt = PromptState{Status: PromptShowing, Category: cat}
	return c.prompt
}

// Dismiss closes the showing prompt and suppresses its category for the rest
// of the session.
func (c *Coordinator) Dismiss() PromptState {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.prompt.Status == PromptShowing {
		c.suppressed[c.prompt.Category] = struct{}{}
	}
	c.prompt = PromptState{Status: PromptClosed}
	return c.prompt
}

// Accept opens the modal for the showing prompt's category.
func (c *Coordinator) Accept() (ModalState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.prompt.Status != PromptShowing {
		return c.modal, apperr.Conflict("no prompt is showing")
	}
	return c.openLocked(c.prompt.Category)
}

// Open opens the modal for cat and closes any showing prompt. Opening over a
// different category's unsaved input is refused and changes nothing.
func (c *Coordinator) Open(cat preferences.SetupCategory) (ModalState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.openLocked(cat)
}

func (c *Coordinator) openLocked(cat preferences.SetupCategory) (ModalState, error) {
	if c.modal.Status == ModalOpen {
		if c.modal.Category == cat {
			c.prompt = PromptState{Status: PromptClosed}
			return c.modal, nil
		}
		if c.modal.Dirty || c.modal.Saving {
			return c.modal, apperr.Conflict("modal %s has unsaved input; close it first", c.modal.Category)
		}
	}
	c.prompt = PromptState{Status: PromptClosed}
	c.modal = ModalState{Status: ModalOpen, Category: cat}
	if cat == preferences.CategoryNotifications {
		c.modal.Draft = []string{string(preferences.DefaultNotificationFrequency)}
	}
	return c.modal, nil
}

// SetDraft records unsaved input for the open modal.
func (c *Coordinator) SetDraft(cat preferences.SetupCategory, values []string) (ModalState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.modal.Status != ModalOpen || c.modal.Category != cat {
		return c.modal, apperr.Conflict("modal %s is not open", cat)
	}
	c.modal.Draft = append([]string(nil), values...)
	c.modal.Dirty = true
	c.modal.LastError = ""
	return c.modal, nil
}

// Close closes the modal without writing ("Skip for now"). The category stays
// incomplete and eligible for later prompts.
func (c *Coordinator) Close() ModalState {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.modal.Saving {
		return c.modal
	}
	c.modal = ModalState{Status: ModalClosed}
	return c.modal
}

// beginComplete validates the submission and marks the modal as saving. When
// values is nil the current draft is submitted.
func (c *Coordinator) beginComplete(cat preferences.SetupCategory, values []string) (preferences.Patch, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.modal.Status != ModalOpen || c.modal.Category != cat {
		return preferences.Patch{}, apperr.Conflict("modal %s is not open", cat)
	}
	if c.modal.Saving {
		return preferences.Patch{}, apperr.Conflict("modal %s is already saving", cat)
	}
	if values == nil {
		values = c.modal.Draft
	}
	c.modal.Draft = append([]string(nil), values...)

	patch, err := preferences.CategoryPatch(cat, values)
	if err != nil {
		c.modal.Dirty = c.modal.Dirty || len(values) > 0
		c.modal.LastError = err.Error()
		return preferences.Patch{}, err
	}
	c.modal.Saving = true
	c.modal.LastError = ""
	return patch, nil
}

// finishComplete closes the modal after a successful write, or keeps it open
// with the input intact and the error recorded for a retry.
func (c *Coordinator) finishComplete(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.modal.Saving = false
	if err != nil {
		c.modal.Dirty = true
		c.modal.LastError = err.Error()
		return
	}
	c.modal = ModalState{Status: ModalClosed}
}
