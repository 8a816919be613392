package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/julianstephens/fieldbook/internal/actions"
	"github.com/julianstephens/fieldbook/internal/models"
)

// loadSession refreshes the structure and actions so the registry validates
// against the current tree.
func loadSession(ctx context.Context, appCtx *Context) error {
	if err := appCtx.Editor.Refresh(ctx, "today"); err != nil {
		return err
	}
	appCtx.Registry.SetStructure(appCtx.Editor.Journal())
	return appCtx.Registry.Refresh(ctx)
}

type ActionListCmd struct{}

func (c *ActionListCmd) Run(appCtx *Context) error {
	ctx := context.Background()
	if err := loadSession(ctx, appCtx); err != nil {
		return err
	}

	validated := appCtx.Registry.Validated()
	if len(validated) == 0 {
		fmt.Println("No actions defined.")
		return nil
	}

	for _, action := range validated {
		status := "ok"
		if !action.Validation.IsValid {
			status = "INVALID: " + action.Validation.Reason
		} else if appCtx.Registry.CompletedToday(action.Action) {
			status = "done today"
		}
		kind := "fixed"
		if action.Option.IsCustom {
			kind = "custom"
		} else if action.Option.Increment != nil {
			kind = fmt.Sprintf("+%g", *action.Option.Increment)
		}
		daily := ""
		if action.IsDailyAction {
			daily = " daily"
		}
		fmt.Printf("[%d] %-24s %s%s  [%s]  (%s)\n", action.Order, action.Name, kind, daily, status, action.ID)
	}
	return nil
}

type ActionEligibleCmd struct{}

func (c *ActionEligibleCmd) Run(appCtx *Context) error {
	ctx := context.Background()
	if err := loadSession(ctx, appCtx); err != nil {
		return err
	}

	eligible := appCtx.Registry.EligibleFields()
	if len(eligible) == 0 {
		fmt.Println("No fields are eligible for a new action.")
		return nil
	}
	for _, field := range eligible {
		kinds := make([]string, 0, len(field.Types))
		for _, fieldType := range field.Types {
			kinds = append(kinds, string(fieldType.Kind))
		}
		fmt.Printf("%-24s [%s]  (%s)\n", field.Name, strings.Join(kinds, ", "), field.ID)
	}
	return nil
}

type ActionCreateCmd struct {
	Name      string   `arg:"" help:"Action name."`
	Field     string   `arg:"" help:"Field id to bind to."`
	Type      string   `short:"t" help:"Field type id (defaults to the field's first incrementable type, else its CHECK)."`
	Increment *float64 `short:"n" help:"Fixed increment; omit for a custom-value action."`
	Daily     bool     `short:"D" help:"Restrict to one registration per day."`
}

func (c *ActionCreateCmd) Run(appCtx *Context) error {
	ctx := context.Background()
	if err := loadSession(ctx, appCtx); err != nil {
		return err
	}

	typeID := c.Type
	if typeID == "" {
		field := appCtx.Editor.Index().Field(c.Field)
		if field == nil {
			return fmt.Errorf("unknown field: %s", c.Field)
		}
		typeID = defaultTypeID(*field)
		if typeID == "" {
			return fmt.Errorf("field %s has no type an action can bind to", field.Name)
		}
	}

	action, err := appCtx.Registry.Create(ctx, c.Name, c.Field, typeID, c.Increment, c.Daily)
	if err != nil {
		return err
	}
	fmt.Printf("Created action: %s (ID: %s)\n", action.Name, action.ID)
	return nil
}

// defaultTypeID picks the binding target when none was given: the first
// incrementable type in order, falling back to the CHECK toggle.
func defaultTypeID(field models.Field) string {
	for _, fieldType := range field.Types {
		switch fieldType.Kind {
		case models.KindNumber, models.KindNumberNavigation, models.KindTimeSelect:
			return fieldType.ID
		}
	}
	if check := field.CheckType(); check != nil {
		return check.ID
	}
	return ""
}

type ActionDeleteCmd struct {
	ID string `arg:"" help:"Action id."`
}

func (c *ActionDeleteCmd) Run(appCtx *Context) error {
	ctx := context.Background()
	if err := loadSession(ctx, appCtx); err != nil {
		return err
	}
	if err := appCtx.Registry.Delete(ctx, c.ID); err != nil {
		return err
	}
	fmt.Printf("Deleted action %s\n", c.ID)
	return nil
}

type ActionReorderCmd struct {
	ID    string `arg:"" help:"Action id."`
	Order int    `arg:"" help:"Target position in the action list."`
}

func (c *ActionReorderCmd) Run(appCtx *Context) error {
	ctx := context.Background()
	if err := loadSession(ctx, appCtx); err != nil {
		return err
	}
	return appCtx.Registry.Reorder(ctx, c.ID, c.Order)
}

type ActionTriggerCmd struct {
	ID     string   `arg:"" help:"Action id."`
	Value  *float64 `short:"v" help:"Value for custom actions."`
	NoWait bool     `help:"Commit immediately instead of counting down."`
}

func (c *ActionTriggerCmd) Run(appCtx *Context) error {
	ctx := context.Background()
	if err := loadSession(ctx, appCtx); err != nil {
		return err
	}

	results := make(chan actions.RegistrationResult, 1)
	appCtx.Registrar.OnResult = func(res actions.RegistrationResult) { results <- res }

	if err := appCtx.Registrar.Trigger(ctx, c.ID, c.Value); err != nil {
		return err
	}

	if c.NoWait {
		if err := appCtx.Registrar.Confirm(); err != nil {
			return err
		}
		fmt.Println("Registered.")
		return nil
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	fmt.Println("Registering… press Ctrl-C to cancel.")
	select {
	case res := <-results:
		if res.Err != nil {
			return res.Err
		}
		fmt.Println("Registered.")
		return nil
	case <-interrupt:
		if err := appCtx.Registrar.Cancel(); err != nil {
			return err
		}
		fmt.Println("Canceled.")
		return nil
	}
}
