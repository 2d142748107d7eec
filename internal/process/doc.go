// Package process supervises a long-running child process.
//
// The remote service uses it to run the media protocol bridge as a managed
// sidecar: the bridge is started in its own process group, its output is
// logged line by line, and it is restarted with exponential backoff when it
// exits or stops answering health checks. A run that lasts longer than
// StableThreshold resets the backoff.
//
//	sup := process.NewSupervisor(process.Options{
//	    Name:             "atv-bridge",
//	    Binary:           "/usr/local/bin/atv-bridge",
//	    Args:             []string{"--broker", "tcp://localhost:1883"},
//	    RestartOnFailure: true,
//	    HealthCheck:      bridge.HealthCheck,
//	})
//	if err := sup.Start(ctx); err != nil {
//	    return err
//	}
//	defer sup.Stop()
package process
