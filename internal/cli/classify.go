package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/vietddude/pricewatch/internal/core/config"
	"github.com/vietddude/pricewatch/internal/core/domain"
	"github.com/vietddude/pricewatch/internal/pricing/classify"
)

var (
	reportPath       string
	capabilitiesPath string
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify an error report against the deployment's capabilities",
	Long: `Reads an ErrorReport as JSON (use "-" for stdin) and prints its classification.
Capabilities come from --capabilities, or from the config file when omitted.`,
	Run: runClassify,
}

func init() {
	classifyCmd.Flags().StringVar(&reportPath, "report", "-", "error report JSON file")
	classifyCmd.Flags().StringVar(&capabilitiesPath, "capabilities", "", "capability descriptor JSON file")
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, args []string) {
	var caps domain.ServiceCapabilityDescriptor
	if capabilitiesPath != "" {
		setupLogging(config.LoggingConfig{})
		c, err := readCapabilities(afero.NewOsFs(), capabilitiesPath)
		if err != nil {
			slog.Error("Failed to read capabilities", "error", err)
			os.Exit(1)
		}
		caps = c
	} else {
		caps = loadConfig().Capabilities
	}

	var in io.Reader = cmd.InOrStdin()
	if reportPath != "-" {
		f, err := os.Open(reportPath)
		if err != nil {
			slog.Error("Failed to open report", "error", err)
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}

	if err := classifyReport(in, cmd.OutOrStdout(), caps); err != nil {
		slog.Error("Failed to classify report", "error", err)
		os.Exit(1)
	}
}

func readCapabilities(fs afero.Fs, path string) (domain.ServiceCapabilityDescriptor, error) {
	var caps domain.ServiceCapabilityDescriptor
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return caps, fmt.Errorf("failed to read capabilities file: %w", err)
	}
	if err := json.Unmarshal(data, &caps); err != nil {
		return caps, fmt.Errorf("failed to parse capabilities file: %w", err)
	}
	return caps, nil
}

func classifyReport(in io.Reader, out io.Writer, caps domain.ServiceCapabilityDescriptor) error {
	var report domain.ErrorReport
	if err := json.NewDecoder(in).Decode(&report); err != nil {
		return fmt.Errorf("failed to parse report: %w", err)
	}

	result := classify.Classify(report, caps)

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
