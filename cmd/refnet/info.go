package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/refnet-ml/refnet/internal/onnx"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <model.onnx>",
		Short: "Summarize an exported ONNX model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := onnx.ParseFile(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "IR version:  %d\n", m.IRVersion)
			for _, op := range m.OpsetImport {
				domain := op.Domain
				if domain == "" {
					domain = "ai.onnx"
				}
				fmt.Fprintf(out, "Opset:       %s v%d\n", domain, op.Version)
			}
			if m.ProducerName != "" {
				fmt.Fprintf(out, "Producer:    %s %s\n", m.ProducerName, m.ProducerVersion)
			}
			g := m.Graph
			if g == nil {
				return fmt.Errorf("model has no graph")
			}
			fmt.Fprintf(out, "Graph:       %s\n", g.Name)
			fmt.Fprintf(out, "Nodes:       %d\n", len(g.Nodes))

			params := 0
			for i := range g.Initializers {
				n := 1
				for _, d := range g.Initializers[i].Dims {
					n *= int(d)
				}
				params += n
			}
			fmt.Fprintf(out, "Parameters:  %d (%d initializers)\n", params, len(g.Initializers))

			for _, v := range g.Inputs {
				fmt.Fprintf(out, "Input:       %s %s\n", v.Name, shapeString(v))
			}
			for _, v := range g.Outputs {
				fmt.Fprintf(out, "Output:      %s %s\n", v.Name, shapeString(v))
			}

			ops := map[string]int{}
			for i := range g.Nodes {
				ops[g.Nodes[i].OpType]++
			}
			fmt.Fprintf(out, "Operators:   ")
			first := true
			for _, op := range []string{"Flatten", "Gemm", "Relu", "Add"} {
				if n, ok := ops[op]; ok {
					if !first {
						fmt.Fprint(out, ", ")
					}
					fmt.Fprintf(out, "%s x%d", op, n)
					first = false
					delete(ops, op)
				}
			}
			for op, n := range ops {
				if !first {
					fmt.Fprint(out, ", ")
				}
				fmt.Fprintf(out, "%s x%d", op, n)
				first = false
			}
			fmt.Fprintln(out)
			return nil
		},
	}
}

func shapeString(v onnx.ValueInfoProto) string {
	if v.Type == nil || v.Type.TensorType == nil || v.Type.TensorType.Shape == nil {
		return "(?)"
	}
	s := "("
	for i, d := range v.Type.TensorType.Shape.Dims {
		if i > 0 {
			s += ","
		}
		if d.DimParam != "" {
			s += d.DimParam
		} else {
			s += fmt.Sprint(d.DimValue)
		}
	}
	return s + ")"
}
