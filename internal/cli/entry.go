package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/julianstephens/fieldbook/internal/remote"
	"github.com/julianstephens/fieldbook/internal/structure"
	"github.com/julianstephens/fieldbook/internal/utils"
)

type EntryShowCmd struct {
	Date string `arg:"" optional:"" help:"Date to show (YYYY-MM-DD or 'today')." default:"today"`
}

func (c *EntryShowCmd) Run(appCtx *Context) error {
	ctx := context.Background()
	date := utils.ResolveDay(c.Date)
	if !utils.ValidDay(date) {
		return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", c.Date)
	}

	entry, err := appCtx.Client.GetEntry(ctx, date)
	if errors.Is(err, remote.ErrNotFound) {
		fmt.Printf("No entry recorded for %s.\n", date)
		return nil
	}
	if err != nil {
		return err
	}

	// Resolve names against the structure effective that day where possible.
	var idx *structure.Index
	if refreshErr := appCtx.Editor.Refresh(ctx, date); refreshErr == nil {
		idx = appCtx.Editor.Index()
	}

	fmt.Printf("Entry for %s:\n\n", entry.Date)
	if len(entry.Values) == 0 {
		fmt.Println("  Nothing recorded.")
		return nil
	}
	for _, value := range entry.Values {
		name := value.FieldID
		if field := idx.Field(value.FieldID); field != nil {
			name = field.Name
		}
		filled := " "
		if value.Filled {
			filled = "x"
		}
		fmt.Printf("  [%s] %-24s %g\n", filled, name, value.Value)
	}
	return nil
}
