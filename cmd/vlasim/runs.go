package main

import (
	"fmt"
	"math"
	"os"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/vlasim/internal/robot"
	"github.com/san-kum/vlasim/internal/scene"
	"github.com/san-kum/vlasim/internal/storage"
)

func openStore() (*storage.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return storage.New(cfg.Data.Runs), nil
}

func listScenes(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDT\tSTEPS/ACTION\tOBJECTS\tSTAGE")

	for _, name := range scene.Names() {
		p, err := scene.Lookup(name)
		if err != nil {
			return err
		}
		stage := "-"
		if p.Stage != nil {
			stage = p.Stage.Instance
		}
		fmt.Fprintf(w, "%s\t%.3fs\t%d\t%d\t%s\n", p.Name, p.Dt, p.StepsPerAction, len(p.Objects), stage)
	}

	return w.Flush()
}

func listRuns(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENE\tTIME\tITER\tRESETS\tPOLICY\tPROMPT")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%q\n",
			run.ID,
			run.Scene,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Iterations,
			run.Resets,
			run.Policy,
			run.Prompt,
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st, err := openStore()
	if err != nil {
		return err
	}
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	tr, err := st.LoadTrajectory(runID)
	if err != nil {
		return err
	}

	if len(tr.States) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("scene: %s\n", meta.Scene)
	fmt.Printf("prompt: %q\n", meta.Prompt)
	fmt.Printf("samples: %d\n", len(tr.States))
	for name, v := range meta.Metrics {
		fmt.Printf("%s: %.4f\n", name, v)
	}
	fmt.Println()

	names := robot.DroidConfig().JointNames
	for i := 0; i < robot.DOFs && i < len(tr.States[0]); i++ {
		caption := fmt.Sprintf("x%d", i)
		if i < len(names) {
			caption = names[i]
		}
		graph := asciigraph.PlotMany(
			[][]float64{downsample(tr.Joint(i), 240), downsample(target(tr, i), 240)},
			asciigraph.Height(8),
			asciigraph.Width(80),
			asciigraph.SeriesColors(asciigraph.Green, asciigraph.DarkGray),
			asciigraph.Caption(caption+" (target in gray)"),
		)
		fmt.Println(graph)
		fmt.Println()
	}

	return nil
}

func target(tr *storage.Trajectory, i int) []float64 {
	out := make([]float64, 0, len(tr.Targets))
	for _, u := range tr.Targets {
		if i < len(u) {
			out = append(out, u[i])
		}
	}
	return out
}

// downsample keeps at most n evenly spaced samples.
func downsample(data []float64, n int) []float64 {
	if len(data) <= n {
		return data
	}
	out := make([]float64, n)
	stride := float64(len(data)-1) / float64(n-1)
	for i := range out {
		out[i] = data[int(math.Round(float64(i)*stride))]
	}
	return out
}

func exportRun(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	return st.Export(os.Stdout, args[0])
}
