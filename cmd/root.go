package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var params = defaultParams()

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bayesmc",
	Short: "Adaptive MCMC for Bayesian regression models",
	Long: `bayesmc fits Bayesian models with an adaptive Metropolis-Hastings
sampler. Among other features:

  - Normal, linear regression and random intercept models
  - Per-dimension proposal balancing before joint sampling
  - Marginal likelihood (model evidence) estimates
  - Independent chains run concurrently, with R-hat
`,
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Sample the posterior of a model",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := params.setup(cmd.Flags().Changed); err != nil {
			return err
		}
		defer params.Close()
		return RunModel(params)
	},
}

var evidenceCmd = &cobra.Command{
	Use:   "evidence",
	Short: "Estimate the model evidence from prior draws only",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := params.setup(cmd.Flags().Changed); err != nil {
			return err
		}
		defer params.Close()
		return PriorEvidence(params)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&params.configFile, "config", "c", "", "YAML config file (flags override its values)")
	pf.BoolVarP(&params.verbose, "verbose", "v", false, "Verbose logging (default is much more parsimonious)")
	pf.StringVarP(&params.dataFile, "data", "d", "", "Data file to read")
	pf.StringVarP(&params.modelName, "model", "m", params.modelName, "Model to fit: normal, linear or mixed")
	pf.Int64VarP(&params.randomSeed, "seed", "r", params.randomSeed, "Random seed to use")

	rf := runCmd.Flags()
	rf.IntVarP(&params.chains, "chains", "n", params.chains, "Number of independent chains")
	rf.IntVarP(&params.parallel, "parallel", "p", 0, "Chains run at once (0 is all of them)")
	rf.StringVarP(&params.traceFile, "trace", "t", "", "File to write retained samples to (TSV)")
	rf.BoolVar(&params.monitor, "monitor", false, "Serve Prometheus progress metrics")
	rf.StringVar(&params.monitorAddr, "monitor-addr", params.monitorAddr, "Address for the progress monitor")
	rf.IntVar(&params.run.BurnIn, "burnin", params.run.BurnIn, "Burn-in length")
	rf.IntVar(&params.run.TotalRealizations, "total", params.run.TotalRealizations, "Total realizations in the main chain")
	rf.IntVar(&params.run.ThinningStride, "stride", params.run.ThinningStride, "Keep one sample in this many after burn-in")

	evidenceCmd.Flags().IntVar(&params.priorDraws, "draws", params.priorDraws, "Number of prior draws")

	rootCmd.AddCommand(runCmd, evidenceCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
