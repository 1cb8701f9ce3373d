// Package onnx serializes trained models into the ONNX portable graph
// format and can execute such graphs for verification.
//
// The protobuf wire layer is hand-written in writer.go and parser.go;
// no generated code or protobuf runtime is involved. Only the subset of
// the ONNX schema needed for feed-forward classifiers is covered:
// Flatten, Gemm, Relu and Add nodes with float32 initializers.
//
// Example usage:
//
//	// Export a trained model
//	err := onnx.ExportFile("out/neural_network.onnx", net)
//
//	// Load it back and run a verification pass
//	m, err := onnx.LoadFile("out/neural_network.onnx", backend)
//	scores, err := m.Forward(input)
package onnx
