package cmd

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dadebr/EpubtoPDF/converter"
	"github.com/dadebr/EpubtoPDF/utils"
)

type convertArgs struct {
	outputPath string
	cliMode    bool
	tolerant   bool
	verbose    bool
}

var cArgs convertArgs

var RootCmd = &cobra.Command{
	Use:          "epubtopdf <input.epub>",
	Short:        "Convert an EPUB e-book to PDF",
	Long:         "Convert an EPUB e-book to PDF",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runConvert,
}

func init() {
	RootCmd.Flags().StringVarP(&cArgs.outputPath, "output", "o", "", "output PDF path (default: input name with .pdf extension)")
	RootCmd.Flags().BoolVar(&cArgs.cliMode, "cli", false, "run in command-line mode (the only mode; accepted for launcher compatibility)")
	RootCmd.Flags().BoolVar(&cArgs.tolerant, "tolerant", false, "skip malformed elements with a warning instead of aborting")
	RootCmd.Flags().BoolVarP(&cArgs.verbose, "verbose", "v", false, "enable debug logging")
}

func runConvert(cmd *cobra.Command, args []string) error {
	if cArgs.verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	inputPath := args[0]
	outputPath := cArgs.outputPath
	if outputPath == "" {
		outputPath = DeriveOutputPath(inputPath)
	}
	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %v", err)
		}
	}

	fmt.Printf("Converting %s to %s...\n", inputPath, outputPath)
	bar := progressbar.NewOptions(100,
		progressbar.OptionSetDescription("converting"),
		progressbar.OptionClearOnFinish(),
	)

	conv := converter.New()
	conv.SetProgressCallback(func(p int) { _ = bar.Set(p) })

	report, err := conv.Convert(inputPath, outputPath, cArgs.tolerant)
	if err != nil {
		return fmt.Errorf("failed to convert: %v", err)
	}

	for _, w := range report.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s: %s (%s)\n", w.Section, w.Reason, w.Excerpt)
	}
	fmt.Println("Conversion completed successfully!")
	fmt.Printf("Output saved to: %s\n", report.OutputPath)
	return nil
}

// DeriveOutputPath derives the default output path: the input filename with a
// .pdf extension in the same directory. URL inputs derive from the URL's base
// name, written to the working directory.
func DeriveOutputPath(inputPath string) string {
	if strings.HasPrefix(inputPath, "http://") || strings.HasPrefix(inputPath, "https://") {
		name := "book"
		if u, err := url.Parse(inputPath); err == nil {
			if base := path.Base(u.Path); base != "" && base != "/" && base != "." {
				name = utils.CleanFileName(base)
			}
		}
		return strings.TrimSuffix(name, path.Ext(name)) + ".pdf"
	}
	return strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + ".pdf"
}
