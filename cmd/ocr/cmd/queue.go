package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/adverant/nexus/ocr-worker/internal/queue"
)

func newEnqueueCommand(o *rootOptions) *cobra.Command {
	var (
		opts   []string
		mode   string
		jobID  string
		userID string
	)

	cmd := &cobra.Command{
		Use:   "enqueue IMAGE",
		Short: "Queue an image for the worker",
		Long: `Submits an ocr:extract task. IMAGE must be readable by the worker, so it is
made absolute before queueing.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			imagePath, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}

			producer, err := queue.NewProducer(&queue.ProducerConfig{
				RedisURL:  o.cfg.RedisURL,
				QueueName: o.cfg.QueueName,
				MaxRetry:  o.cfg.MaxRetries,
			})
			if err != nil {
				return err
			}
			defer producer.Close()

			payload := &queue.JobPayload{
				JobID:     jobID,
				UserID:    userID,
				ImagePath: imagePath,
				Mode:      mode,
				Options:   opts,
			}

			info, err := producer.Enqueue(cmd.Context(), payload)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "enqueued job %s (queue=%s)\n", payload.JobID, info.Queue)
			return err
		},
	}

	cmd.Flags().StringArrayVarP(&opts, "option", "o", nil, `engine flag with its value (repeatable)`)
	cmd.Flags().StringVar(&mode, "mode", "", "plain or structured (default: decided by the options)")
	cmd.Flags().StringVar(&jobID, "job-id", "", "job id (default: a new UUID)")
	cmd.Flags().StringVar(&userID, "user", "", "user the job belongs to")
	return cmd
}

func newStatusCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status JOB_ID",
		Short: "Show the tracked state of a queued job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tracker, err := queue.NewStatusTrackerFromURL(o.cfg.RedisURL, o.cfg.QueueName)
			if err != nil {
				return err
			}
			defer tracker.Close()

			status, data, err := tracker.Result(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if status == "" {
				return fmt.Errorf("job %s is not tracked", args[0])
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, status)
			if len(data) > 0 {
				fmt.Fprintln(out, string(data))
			}
			return nil
		},
	}
}
