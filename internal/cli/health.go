package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewHealthCmd создаёт команду проверки состояния сервиса.
func NewHealthCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check service health",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			health, err := client.Health()
			if err != nil {
				return err
			}

			headers := []string{"CHECK", "STATE"}
			rows := make([][]string, 0, len(health.Checks)+1)
			rows = append(rows, []string{"overall", health.Status})
			for name, state := range health.Checks {
				rows = append(rows, []string{name, state})
			}

			out.Print(headers, rows, health)

			if health.Status == "unhealthy" {
				return fmt.Errorf("service is unhealthy")
			}
			return nil
		},
	}
}
