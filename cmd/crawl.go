package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Menenkel/aibulletin/internal/bulletin"
	"github.com/Menenkel/aibulletin/internal/crawler"
	"github.com/Menenkel/aibulletin/internal/report"
)

type crawlOptions struct {
	urls        []string
	followLinks bool
	maxDepth    int
	summarize   bool
	region      string
	prompt      string
	pdfOut      string
	jsonOut     bool
}

// newCrawlCmd creates the 'crawl' subcommand, a one-shot batch run from the terminal.
func newCrawlCmd() *cobra.Command {
	opts := &crawlOptions{}
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawls seed URLs once and prints the corpus or bulletin",
		Long: `Crawls the given seed URLs (and, with --follow-links, their same-site links
down to --max-depth) and prints the aggregated corpus. With --summarize the
corpus is sent to the configured language model and the bulletin is printed
instead; --pdf-out additionally writes it as a PDF.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd, opts)
		},
	}
	flags := cmd.Flags()
	flags.StringSliceVarP(&opts.urls, "url", "u", nil, "seed URL (repeatable or comma separated)")
	flags.BoolVar(&opts.followLinks, "follow-links", true, "follow same-site links found on each page")
	flags.IntVar(&opts.maxDepth, "max-depth", 0, "maximum crawl depth, seeds are depth 1 (0 uses the configured default)")
	flags.BoolVar(&opts.summarize, "summarize", false, "generate a bulletin with the language model")
	flags.StringVar(&opts.region, "region", "", "region preset used for the bulletin prompt")
	flags.StringVar(&opts.prompt, "prompt", "", "custom system prompt, overrides the region preset")
	flags.StringVar(&opts.pdfOut, "pdf-out", "", "write the bulletin to this PDF file (requires --summarize)")
	flags.BoolVar(&opts.jsonOut, "json", false, "print machine-readable JSON")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func runCrawl(cmd *cobra.Command, opts *crawlOptions) error {
	s, err := resolveSession(cmd.Context())
	if err != nil {
		return err
	}
	if opts.pdfOut != "" && !opts.summarize {
		return errors.New("--pdf-out requires --summarize")
	}
	maxDepth := opts.maxDepth
	if maxDepth == 0 {
		maxDepth = s.cfg.Crawler.MaxDepthDefault
	}
	out := cmd.OutOrStdout()

	if !opts.summarize {
		result, err := s.app.Crawler().CrawlAndAggregate(cmd.Context(), opts.urls, opts.followLinks, maxDepth)
		if err != nil {
			return fmt.Errorf("crawl: %w", err)
		}
		s.logger.Info("crawl command finished",
			zap.Int("sources_processed", result.Stats.SourcesProcessed),
			zap.Int("total_visited", result.Stats.TotalVisited),
		)
		if opts.jsonOut {
			return writeJSON(out, crawlOutput{Corpus: result.Corpus, Sources: result.Sources, Stats: result.Stats})
		}
		printSources(cmd.ErrOrStderr(), result.Sources, result.Stats)
		_, err = fmt.Fprintln(out, result.Corpus)
		return err
	}

	resp, err := s.app.Analyzer().Analyze(cmd.Context(), bulletin.Request{
		URLs:         opts.urls,
		CustomPrompt: opts.prompt,
		Region:       opts.region,
		FollowLinks:  opts.followLinks,
		MaxDepth:     maxDepth,
	})
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}
	if opts.pdfOut != "" {
		if err := report.WriteFile(opts.pdfOut, bulletinReport(resp)); err != nil {
			return err
		}
		s.logger.Info("bulletin written", zap.String("path", opts.pdfOut))
	}
	if opts.jsonOut {
		return writeJSON(out, resp)
	}
	printSources(cmd.ErrOrStderr(), resp.Sources, crawler.Stats{
		SourcesProcessed: resp.SourcesProcessed,
		TotalVisited:     resp.URLsAnalyzed,
	})
	_, err = fmt.Fprintln(out, resp.Analysis)
	return err
}

type crawlOutput struct {
	Corpus  string                 `json:"corpus"`
	Sources []crawler.SourceResult `json:"sources"`
	Stats   crawler.Stats          `json:"stats"`
}

func bulletinReport(resp bulletin.Response) report.Bulletin {
	sources := make([]string, 0, len(resp.Sources))
	for _, src := range resp.Sources {
		sources = append(sources, src.URL)
	}
	return report.Bulletin{
		Region:       resp.Region,
		GeneratedAt:  time.Now(),
		Analysis:     resp.Analysis,
		Sources:      sources,
		URLsAnalyzed: resp.URLsAnalyzed,
	}
}

func printSources(w io.Writer, sources []crawler.SourceResult, stats crawler.Stats) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "URL\tKIND\tCHARS\tSUBPAGES\tERROR")
	for _, src := range sources {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", src.URL, src.Kind, src.Chars, src.Subpages, src.Error)
	}
	_ = tw.Flush()
	_, _ = fmt.Fprintf(w, "sources processed: %d, urls visited: %d\n", stats.SourcesProcessed, stats.TotalVisited)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
