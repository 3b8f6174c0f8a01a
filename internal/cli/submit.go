package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fabrik-io/fabrik/internal/lifecycle"
)

var submitFile string

var submitCmd = &cobra.Command{
	Use:   "submit [instructions]",
	Short: "Submit build instructions as a new ticket",
	Long:  "Submits instructions to the daemon. Pass them as arguments, via --file, or on stdin.",
	RunE:  runSubmit,
}

func init() {
	submitCmd.Flags().StringVarP(&submitFile, "file", "f", "", "Read instructions from a file (- for stdin)")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	instructions, err := resolveInstructions(args)
	if err != nil {
		return err
	}

	body, err := apiPost("/api/tasks", map[string]string{"instructions": instructions})
	if err != nil {
		return err
	}

	var res lifecycle.SubmitResult
	if err := json.Unmarshal(body, &res); err != nil {
		return fmt.Errorf("unexpected response: %s", string(body))
	}
	if res.Duplicate {
		fmt.Println(dimStyle.Render("duplicate of an existing ticket, nothing created"))
		return nil
	}
	fmt.Printf("Created %s (task file %s)\n", res.TicketID, res.TaskFile)
	fmt.Printf("Run: fabrikctl tickets develop %s\n", res.TicketID)
	return nil
}

func resolveInstructions(args []string) (string, error) {
	switch {
	case submitFile == "-":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", err
		}
		return string(data), nil
	case submitFile != "":
		data, err := os.ReadFile(submitFile)
		if err != nil {
			return "", err
		}
		return string(data), nil
	case len(args) > 0:
		return strings.Join(args, " "), nil
	default:
		return "", fmt.Errorf("instructions required (arguments, --file, or --file -)")
	}
}
