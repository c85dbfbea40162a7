package tendermint

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
)

// binary is the Tendermint executable looked up on PATH.
var binary = "tendermint"

// Node supervises a Tendermint child process that drives the ABCI server.
type Node struct {
	home       string
	socketAddr string
	cmd        *exec.Cmd
}

// NewNode returns a supervisor for a Tendermint node using home as its home
// directory and connecting to the ABCI server at socketAddr. An empty home
// falls back to TendermintHome.
func NewNode(home, socketAddr string) *Node {
	if home == "" {
		home = TendermintHome()
	}
	if socketAddr == "" {
		socketAddr = "unix://cmx.sock"
	}
	return &Node{home: home, socketAddr: socketAddr}
}

// Home returns the Tendermint home directory.
func (n *Node) Home() string {
	return n.home
}

// Initialized reports whether the home directory already holds a node
// configuration.
func (n *Node) Initialized() bool {
	_, err := os.Stat(filepath.Join(n.home, "config", "config.toml"))
	return err == nil
}

// Init writes config and genesis files with `tendermint init` unless the
// home directory is already initialized.
func (n *Node) Init() error {
	if n.Initialized() {
		return nil
	}
	cmd := n.command("init", "--home", n.home)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to initialize Tendermint: %w", err)
	}
	log.Infof("Initialized Tendermint home %s", n.home)
	return nil
}

// Start initializes the home directory if needed and launches the node.
func (n *Node) Start() error {
	if n.cmd != nil {
		return errors.New("tendermint node already started")
	}
	if err := n.Init(); err != nil {
		return err
	}
	cmd := n.command("node", "--home", n.home, "--proxy_app", n.socketAddr)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start Tendermint: %w", err)
	}
	n.cmd = cmd
	log.Infof("Tendermint node started (pid %d, proxy_app %s)", cmd.Process.Pid, n.socketAddr)
	return nil
}

// Stop terminates the node and waits for it to exit.
func (n *Node) Stop() error {
	if n.cmd == nil {
		return nil
	}
	cmd := n.cmd
	n.cmd = nil
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to signal Tendermint: %w", err)
	}
	err := cmd.Wait()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		log.Debugf("Tendermint exited: %v", err)
		return nil
	}
	return err
}

func (n *Node) command(args ...string) *exec.Cmd {
	cmd := exec.Command(binary, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd
}

// TendermintHome returns the default Tendermint home directory.
func TendermintHome() string {
	if home := os.Getenv("TMHOME"); home != "" {
		return home
	}
	return filepath.Join(os.Getenv("HOME"), ".tendermint")
}
