package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/AnyUserName/tgimg-render/internal/manifest"
)

var validateCmd = &cobra.Command{
	Use:   "validate <dir_or_manifest>",
	Short: "Validate a render manifest's placeholders and URLs",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(_ *cobra.Command, args []string) error {
	m, err := manifest.Read(args[0])
	if err != nil {
		return err
	}

	errs := manifest.Validate(m)
	if len(errs) == 0 {
		fmt.Println("  ✓ Manifest is valid")
		fmt.Printf("  ✓ %d assets, %d renditions, %d URLs\n", m.Stats.TotalAssets, m.Stats.TotalRenditions, m.Stats.TotalURLs)
		return nil
	}

	sort.Strings(errs)
	fmt.Printf("  ✗ Manifest has %d error(s):\n", len(errs))
	for _, e := range errs {
		fmt.Printf("    • %s\n", e)
	}
	return fmt.Errorf("validation failed with %d errors", len(errs))
}
