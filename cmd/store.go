// Copyright (c) 2019 Siemens AG
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
//
// Author(s): Jonas Plum

package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/forensicanalysis/evtx2bodyfile/eventstore"
)

// Store is the evtx2bodyfile store subcommand to query event stores created
// with --store.
func Store() *cobra.Command {
	storeCommand := &cobra.Command{
		Use:   "store",
		Short: "Query an event store",
	}
	storeCommand.AddCommand(getCommand(), selectCommand(), allCommand(),
		searchCommand(), validateCommand())
	return storeCommand
}

func getCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "get <id> <store>",
		Short:         "Retrieve a single event",
		Args:          cobra.ExactArgs(2), //nolint:gomnd
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(args[1])
			if err != nil {
				return err
			}
			defer store.Close()
			element, err := store.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", element)
			return nil
		},
	}
}

func selectCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "select <field=value>... <store>",
		Short:         "Retrieve all events where all fields have the given values",
		Args:          cobra.MinimumNArgs(2), //nolint:gomnd
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			condition := map[string]string{}
			for _, arg := range args[:len(args)-1] {
				parts := strings.SplitN(arg, "=", 2) //nolint:gomnd
				if len(parts) != 2 {                 //nolint:gomnd
					return fmt.Errorf("condition %q must have the form field=value", arg)
				}
				condition[parts[0]] = parts[1]
			}
			store, err := openStore(args[len(args)-1])
			if err != nil {
				return err
			}
			defer store.Close()
			elements, err := store.Select([]map[string]string{condition})
			if err != nil {
				return err
			}
			return printElements(cmd, elements)
		},
	}
}

func allCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "all <store>",
		Short:         "Retrieve all events",
		Args:          cobra.ExactArgs(1), //nolint:gomnd
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(args[0])
			if err != nil {
				return err
			}
			defer store.Close()
			elements, err := store.All()
			if err != nil {
				return err
			}
			return printElements(cmd, elements)
		},
	}
}

func searchCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "search <query> <store>",
		Short:         "Full text search for events",
		Args:          cobra.ExactArgs(2), //nolint:gomnd
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(args[1])
			if err != nil {
				return err
			}
			defer store.Close()
			elements, err := store.Search(args[0])
			if err != nil {
				return err
			}
			return printElements(cmd, elements)
		},
	}
}

func validateCommand() *cobra.Command {
	var noFail bool
	validateCommand := &cobra.Command{
		Use:           "validate <store>",
		Short:         "Validate all events",
		Args:          cobra.ExactArgs(1), //nolint:gomnd
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(args[0])
			if err != nil {
				return err
			}
			defer store.Close()
			flaws, err := store.Validate()
			if err != nil {
				return err
			}
			for _, flaw := range flaws {
				fmt.Fprintln(cmd.OutOrStdout(), flaw)
			}
			if len(flaws) > 0 && !noFail {
				return fmt.Errorf("%d flaws found", len(flaws))
			}
			return nil
		},
	}
	validateCommand.Flags().BoolVar(&noFail, "no-fail", false, "return exit code 0")
	return validateCommand
}

func openStore(path string) (*eventstore.Store, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, errors.Wrap(os.ErrNotExist, path)
	}
	return eventstore.Open(path, eventstore.DefaultDiscriminator)
}

func printElements(cmd *cobra.Command, elements []eventstore.JSONElement) error {
	for _, element := range elements {
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\n", element); err != nil {
			return err
		}
	}
	return nil
}
