package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func TestCommonFlags(t *testing.T) {
	flags := commonFlags()
	require.Len(t, flags, 2)

	db, ok := flags[0].(*cli.StringFlag)
	require.True(t, ok)
	assert.Equal(t, "db", db.Name)
	assert.True(t, db.Required)

	src, ok := flags[1].(*cli.StringFlag)
	require.True(t, ok)
	assert.Equal(t, "source", src.Name)
	assert.True(t, src.Required)
}

func TestSyncCommandFlags(t *testing.T) {
	app := &cli.App{
		Name: "refindex",
		Commands: []*cli.Command{
			{
				Name:   "sync",
				Action: syncCommand,
				Flags: append(commonFlags(),
					&cli.StringFlag{
						Name:  "embedding-host",
						Value: "http://localhost:11434/v1",
					},
				),
			},
		},
	}

	t.Run("missing db flag fails", func(t *testing.T) {
		err := app.Run([]string{"refindex", "sync", "--source", "/tmp/records"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db")
	})

	t.Run("missing source flag fails", func(t *testing.T) {
		err := app.Run([]string{"refindex", "sync", "--db", "/tmp/test"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "source")
	})

	t.Run("embedding-host has default value", func(t *testing.T) {
		cmd := app.Commands[0]
		var hostFlag *cli.StringFlag
		for _, flag := range cmd.Flags {
			if f, ok := flag.(*cli.StringFlag); ok && f.Name == "embedding-host" {
				hostFlag = f
				break
			}
		}
		require.NotNil(t, hostFlag)
		assert.Equal(t, "http://localhost:11434/v1", hostFlag.Value)
	})
}

func TestProgressReporter(t *testing.T) {
	var buf bytes.Buffer
	reporter := &progressReporter{writer: &buf, interval: 1}

	reporter.update(1, 3)
	reporter.update(3, 3)
	reporter.finish()

	out := buf.String()
	assert.Contains(t, out, "1/3")
	assert.Contains(t, out, "3/3 (100.0%)")
	assert.True(t, strings.HasSuffix(out, "\n"))
}

func TestProgressReporter_FinishWithoutUpdates(t *testing.T) {
	// Multi-partition syncs never construct a reporter; finish must
	// tolerate both the nil reporter and a reporter that saw no callbacks.
	var nilReporter *progressReporter
	nilReporter.finish()

	var buf bytes.Buffer
	reporter := &progressReporter{writer: &buf, interval: 1}
	reporter.finish()
	assert.Empty(t, buf.String())
}

func TestSetupLogger(t *testing.T) {
	newApp := func() *cli.App {
		return &cli.App{
			Name: "test",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "log-level",
					Value: "info",
				},
			},
			Before: setupLogger,
			Action: func(c *cli.Context) error { return nil },
		}
	}

	t.Run("valid log levels", func(t *testing.T) {
		for _, level := range []string{"debug", "info", "warn", "error", "WaRn"} {
			err := newApp().Run([]string{"test", "--log-level", level})
			require.NoError(t, err, level)
		}
	})

	t.Run("invalid log level returns error", func(t *testing.T) {
		err := newApp().Run([]string{"test", "--log-level", "verbose"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})
}
