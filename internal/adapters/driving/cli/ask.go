package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-context/internal/core/domain"
)

var askCmd = &cobra.Command{
	Use:   "ask [query]",
	Short: "Answer a question from imported documents",
	Long: `Retrieve context for a question and ask the configured LLM to answer
from it. When nothing relevant is found the LLM is not called.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	addRetrievalFlags(askCmd)
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if retrievalService == nil {
		return errors.New("retrieval service not configured")
	}

	req, err := buildRetrievalRequest(args[0])
	if err != nil {
		return err
	}

	res, err := retrievalService.Answer(cmd.Context(), req)
	if errors.Is(err, domain.ErrLLMUnavailable) {
		return errors.New("no LLM configured, run 'sercha-context settings llm' or use 'sercha-context context'")
	}
	if err != nil {
		return fmt.Errorf("answer failed: %w", err)
	}

	out := toContextView(res.Retrieval)
	out.Answer = res.Answer
	out.NoEvidence = res.NoEvidence

	if retrievalFlags.output != outputText {
		return writeStructured(cmd, out)
	}

	if res.NoEvidence {
		cmd.Println(domain.NoEvidenceReply)
		return nil
	}
	cmd.Println(res.Answer)
	if len(out.Documents) > 0 {
		cmd.Println()
		cmd.Println("Sources:")
		for i := range out.Documents {
			cmd.Printf("  [%d] %s\n", i+1, out.Documents[i].Title)
		}
	}
	return nil
}
