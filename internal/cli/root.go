package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/julianstephens/fieldbook/internal/actions"
	"github.com/julianstephens/fieldbook/internal/models"
	"github.com/julianstephens/fieldbook/internal/remote"
	"github.com/julianstephens/fieldbook/internal/structure"
)

// Context carries the per-invocation editing session every command runs
// against.
type Context struct {
	Client    remote.Client
	Editor    *structure.Editor
	Registry  *actions.Registry
	Registrar *actions.Registrar
	DataDir   string
}

// withStructure refreshes today's structure, applies fn, and saves the result.
// On a failed mutation nothing is persisted.
func (c *Context) withStructure(ctx context.Context, fn func() error) error {
	if err := c.Editor.Refresh(ctx, "today"); err != nil {
		return err
	}
	if err := fn(); err != nil {
		return err
	}
	if !c.Editor.Dirty() {
		fmt.Println("No changes to save.")
		return nil
	}
	if _, err := c.Editor.Save(ctx); err != nil {
		return err
	}
	return nil
}

// resolveGroup finds a group by id first, then by exact name.
func resolveGroup(journal *models.Journal, ref string) (*models.Group, error) {
	for i := range journal.Groups {
		if journal.Groups[i].ID == ref {
			return &journal.Groups[i], nil
		}
	}
	for i := range journal.Groups {
		if journal.Groups[i].Name == ref {
			return &journal.Groups[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", structure.ErrGroupNotFound, ref)
}

// notFound reports whether err is any of the editor's unknown-id errors.
func notFound(err error) bool {
	return errors.Is(err, structure.ErrGroupNotFound) ||
		errors.Is(err, structure.ErrFieldNotFound) ||
		errors.Is(err, structure.ErrFieldTypeNotFound)
}
