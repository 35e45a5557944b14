package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/Pulth-Team/Pulth-sub000/internal/infrastructure/database"
	"github.com/Pulth-Team/Pulth-sub000/internal/metrics"
	"github.com/Pulth-Team/Pulth-sub000/internal/thread"
	"github.com/Pulth-Team/Pulth-sub000/internal/usecase"
)

var threadCmd = &cobra.Command{
	Use:   "thread <articleID>",
	Short: "Print the comment tree of an article",
	Long: `Reads every comment of the article from the database and prints the
reply tree. Missing ancestors show up as placeholders and records that could
not be placed are listed as diagnostics.`,
	Args: cobra.ExactArgs(1),
	RunE: runThread,
}

func runThread(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	pool, err := database.Connect(ctx, cfg.Database.DSN())
	if err != nil {
		return err
	}
	defer pool.Close()

	repo := database.NewPostgresRepository(pool)
	uc := usecase.NewCommentUseCase(repo, repo, nil, logger, metrics.New(prometheus.NewRegistry()))

	forest, diagnostics, err := uc.LoadForest(ctx, args[0])
	if err != nil {
		return err
	}

	return writeThread(cmd.OutOrStdout(), forest, diagnostics, cfg.Thread.MaxReplyDepth)
}

// writeThread prints the forest as an indented outline, two spaces per level.
func writeThread(w io.Writer, f *thread.Forest, diagnostics []error, maxReplyDepth int) error {
	var b strings.Builder

	if f.Len() == 0 {
		b.WriteString("no comments\n")
	}

	f.Walk(func(n *thread.Node, depth int) bool {
		b.WriteString(strings.Repeat("  ", depth))
		b.WriteString("- ")

		rec, ok := n.Payload()
		if !ok {
			fmt.Fprintf(&b, "[%s] (missing comment)\n", n.ID())
			return true
		}

		author := "[deleted]"
		if rec.AuthorName != nil {
			author = *rec.AuthorName
		}
		fmt.Fprintf(&b, "[%s] %s: %s", rec.ID, author, strings.Join(strings.Fields(rec.Content), " "))
		if rec.IsEdited {
			b.WriteString(" (edited)")
		}
		if depth >= maxReplyDepth {
			b.WriteString(" (replies closed)")
		}
		b.WriteString("\n")
		return true
	})

	if len(diagnostics) > 0 {
		fmt.Fprintf(&b, "\n%d record(s) skipped:\n", len(diagnostics))
		for _, err := range diagnostics {
			fmt.Fprintf(&b, "  %v\n", err)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
