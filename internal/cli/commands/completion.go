package commands

import (
	"strings"

	"github.com/spf13/cobra"
)

// completeSchemaKeys completes the first argument with the keys of active schemas.
// Shell scripts come from cobra's built-in completion command.
func completeSchemaKeys(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	a, err := openApp(cmd)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	defer a.Close()

	pointers, err := a.svc.Versions().ListActive(cmd.Context())
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}

	var keys []string
	for _, p := range pointers {
		if strings.HasPrefix(p.SchemaKey, toComplete) {
			keys = append(keys, p.SchemaKey)
		}
	}
	return keys, cobra.ShellCompDirectiveNoFileComp
}
