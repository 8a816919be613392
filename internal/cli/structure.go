package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/julianstephens/fieldbook/internal/models"
	"github.com/julianstephens/fieldbook/internal/structure"
)

type StructureShowCmd struct {
	Date string `arg:"" optional:"" help:"Date to show (YYYY-MM-DD or 'today')." default:"today"`
}

func (c *StructureShowCmd) Run(appCtx *Context) error {
	ctx := context.Background()
	if err := appCtx.Editor.Refresh(ctx, c.Date); err != nil {
		return err
	}

	journal := appCtx.Editor.Journal()
	if appCtx.Editor.Historical() {
		fmt.Printf("Structure effective %s (historical, read-only):\n\n", journal.EffectiveFrom.Format("2006-01-02"))
	} else {
		fmt.Printf("Structure effective %s:\n\n", journal.EffectiveFrom.Format("2006-01-02"))
	}

	for _, group := range journal.Groups {
		fmt.Printf("[%d] %s  (%s)\n", group.Order, group.Name, group.ID)
		for _, field := range group.Fields {
			fmt.Printf("  [%d] %s  (%s)\n", field.Order, field.Name, field.ID)
			for _, fieldType := range field.Types {
				desc := ""
				if fieldType.Description != "" {
					desc = " - " + fieldType.Description
				}
				fmt.Printf("    [%d] %s%s  (%s)\n", fieldType.Order, fieldType.Kind, desc, fieldType.ID)
			}
		}
	}
	return nil
}

type GroupAddCmd struct {
	Name string `arg:"" help:"Group name."`
}

func (c *GroupAddCmd) Run(appCtx *Context) error {
	ctx := context.Background()
	var group models.Group
	err := appCtx.withStructure(ctx, func() error {
		var err error
		group, err = appCtx.Editor.AddGroup(c.Name)
		return err
	})
	if err != nil {
		return err
	}
	fmt.Printf("Added group: %s (ID: %s)\n", group.Name, group.ID)
	return nil
}

type FieldAddCmd struct {
	Group string `arg:"" help:"Group id or name."`
	Name  string `arg:"" help:"Field name."`
	Index *int   `short:"i" help:"Insertion index among the group's fields."`
}

func (c *FieldAddCmd) Run(appCtx *Context) error {
	ctx := context.Background()
	var field models.Field
	err := appCtx.withStructure(ctx, func() error {
		group, err := resolveGroup(appCtx.Editor.Journal(), c.Group)
		if err != nil {
			return err
		}
		field, err = appCtx.Editor.AddField(group.ID, c.Name, c.Index)
		return err
	})
	if err != nil {
		return err
	}
	fmt.Printf("Added field: %s (ID: %s)\n", field.Name, field.ID)
	return nil
}

type TypeAddCmd struct {
	Field       string   `arg:"" help:"Field id."`
	Kind        string   `arg:"" help:"Type kind (NUMBER|NUMBER_NAVIGATION|TIME_SELECT|RANGE|SEVERITY|CUSTOM_SCALE)."`
	Description string   `short:"d" help:"Type description."`
	Min         float64  `help:"Minimum value (numeric kinds)."`
	Max         float64  `help:"Maximum value (numeric kinds)." default:"100"`
	Step        float64  `help:"Step size (numeric kinds)." default:"1"`
	Unit        string   `help:"Unit label (numeric kinds)."`
	Labels      []string `help:"Scale labels (CUSTOM_SCALE)."`
	Order       *int     `short:"o" help:"Explicit order among the field's types."`
}

func (c *TypeAddCmd) Run(appCtx *Context) error {
	ctx := context.Background()
	kind := models.Kind(strings.ToUpper(c.Kind))

	opts := models.DataOptions{}
	switch kind {
	case models.KindCustomScale:
		opts.Scale = &models.ScaleOptions{Labels: c.Labels}
	case models.KindCheck:
		// Rejected by the editor; fall through so the error is uniform.
	default:
		opts.Numeric = &models.NumericOptions{Min: c.Min, Max: c.Max, Step: c.Step, Unit: c.Unit}
	}

	var fieldType models.FieldType
	err := appCtx.withStructure(ctx, func() error {
		var err error
		fieldType, err = appCtx.Editor.AddFieldType(c.Field, kind, c.Description, opts, c.Order)
		return err
	})
	if err != nil {
		return err
	}
	fmt.Printf("Added %s type to field (ID: %s)\n", fieldType.Kind, fieldType.ID)
	return nil
}

type RenameCmd struct {
	ID   string `arg:"" help:"Group, field or field type id."`
	Name string `arg:"" help:"New name (description for field types)."`
}

func (c *RenameCmd) Run(appCtx *Context) error {
	ctx := context.Background()
	return appCtx.withStructure(ctx, func() error {
		err := appCtx.Editor.UpdateGroup(c.ID, structure.GroupUpdate{Name: &c.Name})
		if err == nil || !notFound(err) {
			return err
		}
		err = appCtx.Editor.UpdateField(c.ID, structure.FieldUpdate{Name: &c.Name})
		if err == nil || !notFound(err) {
			return err
		}
		return appCtx.Editor.UpdateFieldType(c.ID, structure.FieldTypeUpdate{Description: &c.Name})
	})
}

type RemoveCmd struct {
	ID string `arg:"" help:"Group, field or field type id."`
}

func (c *RemoveCmd) Run(appCtx *Context) error {
	ctx := context.Background()
	err := appCtx.withStructure(ctx, func() error {
		err := appCtx.Editor.RemoveGroup(c.ID)
		if err == nil || !notFound(err) {
			return err
		}
		err = appCtx.Editor.RemoveField(c.ID)
		if err == nil || !notFound(err) {
			return err
		}
		return appCtx.Editor.RemoveFieldType(c.ID)
	})
	if err != nil {
		return err
	}
	fmt.Printf("Removed %s\n", c.ID)
	return nil
}

type ReorderCmd struct {
	ID    string `arg:"" help:"Group, field or field type id."`
	Index int    `arg:"" help:"Target index among siblings."`
}

func (c *ReorderCmd) Run(appCtx *Context) error {
	ctx := context.Background()
	return appCtx.withStructure(ctx, func() error {
		err := appCtx.Editor.ReorderGroup(c.ID, c.Index)
		if err == nil || !notFound(err) {
			return err
		}
		err = appCtx.Editor.ReorderField(c.ID, c.Index)
		if err == nil || !notFound(err) {
			return err
		}
		return appCtx.Editor.ReorderFieldType(c.ID, c.Index)
	})
}

type StructureSaveCmd struct{}

// Run rolls the current structure forward as today's version, bootstrapping a
// default structure for a brand-new journal.
func (c *StructureSaveCmd) Run(appCtx *Context) error {
	ctx := context.Background()
	if err := appCtx.Editor.Refresh(ctx, "today"); err != nil {
		return err
	}
	saved, err := appCtx.Editor.Save(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Saved structure %s (effective %s)\n", saved.StructureID, saved.EffectiveFrom.Format("2006-01-02"))
	return nil
}
