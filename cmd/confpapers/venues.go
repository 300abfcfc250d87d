// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/confpapers/internal/venue"
)

var venuesCmd = &cobra.Command{
	Use:   "venues",
	Short: "List the supported venues and their default years",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printVenues(os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(venuesCmd)
}

func printVenues(w io.Writer) error {
	for _, name := range venue.Names() {
		a, err := venue.Lookup(name)
		if err != nil {
			return err
		}
		years := venue.DefaultYears(name)
		ys := make([]string, len(years))
		for i, y := range years {
			ys[i] = strconv.Itoa(y)
		}
		fmt.Fprintf(w, "%-8s %-8s %-28s default years: %s\n", name, a.Venue(), a.DefaultBaseURL(), strings.Join(ys, ", "))
	}
	return nil
}
