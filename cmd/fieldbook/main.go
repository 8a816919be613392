package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/julianstephens/fieldbook/internal/actions"
	"github.com/julianstephens/fieldbook/internal/cli"
	"github.com/julianstephens/fieldbook/internal/constants"
	fberrors "github.com/julianstephens/fieldbook/internal/errors"
	"github.com/julianstephens/fieldbook/internal/logger"
	"github.com/julianstephens/fieldbook/internal/remote"
	"github.com/julianstephens/fieldbook/internal/structure"
)

var CLI struct {
	Version kong.VersionFlag
	Server  string `help:"Synchronization server URL." env:"FIELDBOOK_SERVER" default:"${default_server}"`
	DataDir string `help:"Data directory for local serving and logs." type:"path" default:"~/.config/fieldbook"`
	Debug   bool   `help:"Enable debug logging to stderr."`

	Init   cli.InitCmd   `cmd:"" help:"Initialize local fieldbook storage."`
	Serve  cli.ServeCmd  `cmd:"" help:"Run the local synchronization server."`
	Doctor cli.DoctorCmd `cmd:"" help:"Run diagnostics."`

	Structure struct {
		Show    cli.StructureShowCmd `cmd:"" help:"Show the structure for a date." default:"1"`
		Save    cli.StructureSaveCmd `cmd:"" help:"Roll the structure forward as today's version."`
		Remove  cli.RemoveCmd        `cmd:"" help:"Remove a group, field or field type."`
		Rename  cli.RenameCmd        `cmd:"" help:"Rename a group, field or field type."`
		Reorder cli.ReorderCmd       `cmd:"" help:"Move a group, field or field type among its siblings."`
		Group   struct {
			Add cli.GroupAddCmd `cmd:"" help:"Add a group."`
		} `cmd:"" help:"Manage groups."`
		Field struct {
			Add cli.FieldAddCmd `cmd:"" help:"Add a field to a group."`
		} `cmd:"" help:"Manage fields."`
		Type struct {
			Add cli.TypeAddCmd `cmd:"" help:"Add a field type to a field."`
		} `cmd:"" help:"Manage field types."`
	} `cmd:"" help:"Edit the journal structure."`

	Action struct {
		List     cli.ActionListCmd     `cmd:"" help:"List actions with their validation state." default:"1"`
		Eligible cli.ActionEligibleCmd `cmd:"" help:"List fields a new action could bind to."`
		Create   cli.ActionCreateCmd   `cmd:"" help:"Create a quick action."`
		Delete   cli.ActionDeleteCmd   `cmd:"" help:"Delete an action."`
		Reorder  cli.ActionReorderCmd  `cmd:"" help:"Move an action in the list."`
		Trigger  cli.ActionTriggerCmd  `cmd:"" help:"Trigger an action (3s countdown unless --no-wait)."`
	} `cmd:"" help:"Manage quick actions."`

	Entry cli.EntryShowCmd `cmd:"" help:"Show a day's entry."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("fieldbook"),
		kong.Description("Personal journal structure editor and quick-action companion"),
		kong.UsageOnError(),
		kong.Vars{
			"version":        "v0.3.0",
			"default_server": constants.DefaultServerURL,
		},
	)

	if err := logger.Init(logger.Config{Debug: CLI.Debug, DataDir: CLI.DataDir}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
	}

	client := remote.NewHTTPClient(CLI.Server)
	registry := actions.NewRegistry(client)

	appCtx := &cli.Context{
		Client:    client,
		Editor:    structure.NewEditor(client),
		Registry:  registry,
		Registrar: actions.NewRegistrar(registry, client, constants.RegistrationDelay),
		DataDir:   CLI.DataDir,
	}

	fberrors.Fatal(ctx.Run(appCtx))
}
