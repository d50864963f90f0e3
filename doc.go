// Package kernsim simulates the core of a cooperative multitasking operating
// system kernel.
//
// A priority-driven scheduler steps simulated processes, mediates their
// requests for a fixed catalogue of system resources and lets processes spawn
// children, signal each other's state and terminate. Sub-packages:
//
//   - service/kernel  – the tick loop and protocol checks
//   - service/pool    – free resource instances
//   - runtime/process – the step contract and the bundled programs
//   - runtime/vm      – the virtual machine handed to every step
//
// End-users typically drive the simulator through the Service façade:
//
//	cfg, _ := kernsim.LoadConfig(ctx, "kernsim.yaml")
//	srv, _ := kernsim.New(kernsim.WithConfig(cfg))
//	rt := srv.Runtime()
//	_ = rt.Bootstrap()
//	err := rt.Run(ctx)
package kernsim
