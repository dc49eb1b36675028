package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// NewTaskCmd создаёт группу команд для управления задачами.
func NewTaskCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
	}

	cmd.AddCommand(
		newTaskSubmitCmd(clientFn, outputFn),
		newTaskShowCmd(clientFn, outputFn),
		newTaskListCmd(clientFn, outputFn),
		newTaskDeleteCmd(clientFn, outputFn),
		newTaskWaitCmd(clientFn, outputFn),
	)

	return cmd
}

// readCircuit читает схему из файла или stdin ("-").
func readCircuit(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read circuit file: %w", err)
	}
	return string(data), nil
}

func newTaskSubmitCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "submit FILE",
		Short: "Submit a QASM3 circuit for execution ('-' reads stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			circuit, err := readCircuit(args[0])
			if err != nil {
				return err
			}

			task, err := client.SubmitTask(circuit)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Task submitted: %s", task.ID))

			if wait {
				task, err = waitForTask(client, task.ID)
				if err != nil {
					return err
				}
			}

			printTask(out, task)
			return nil
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "Block until the task reaches a terminal status")

	return cmd
}

func newTaskShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show TASK_ID",
		Short: "Show task status and result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			task, err := client.GetTask(args[0])
			if err != nil {
				return err
			}

			printTask(out, task)
			return nil
		},
	}
}

func newTaskListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var status string
	var limit int
	var offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			tasks, total, err := client.ListTasks(ListTasksOpts{
				Status: status,
				Limit:  limit,
				Offset: offset,
			})
			if err != nil {
				return err
			}

			headers := []string{"ID", "STATUS", "ERROR", "CREATED"}
			rows := make([][]string, len(tasks))
			for i, t := range tasks {
				rows[i] = []string{t.ID, t.Status, t.Error, t.CreatedAt}
			}

			out.Print(headers, rows, tasks)
			if len(tasks) < total {
				out.Success(fmt.Sprintf("Showing %d of %d tasks", len(tasks), total))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (PENDING, RUNNING, COMPLETED, FAILED, CANCELLED)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")
	cmd.Flags().IntVar(&offset, "offset", 0, "Pagination offset")

	return cmd
}

func newTaskDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete TASK_ID",
		Short: "Cancel and delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteTask(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Task deleted: %s", args[0]))
			return nil
		},
	}
}

func newTaskWaitCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "wait TASK_ID",
		Short: "Block until a task reaches a terminal status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			task, err := waitForTask(client, args[0])
			if err != nil {
				return err
			}

			printTask(out, task)
			return nil
		},
	}
}

// waitForTask опрашивает API до терминального статуса задачи.
func waitForTask(client *Client, id string) (*TaskResponse, error) {
	for {
		task, err := client.GetTask(id)
		if err != nil {
			return nil, err
		}

		switch task.Status {
		case "COMPLETED", "FAILED", "CANCELLED":
			return task, nil
		}

		time.Sleep(time.Second)
	}
}

// printTask выводит задачу: сводка таблицей плюс гистограмма.
func printTask(out *Output, task *TaskResponse) {
	out.Print(
		[]string{"ID", "STATUS", "ERROR", "CREATED", "UPDATED"},
		[][]string{{task.ID, task.Status, task.Error, task.CreatedAt, task.UpdatedAt}},
		task,
	)
	out.Histogram(task.Result)
}
