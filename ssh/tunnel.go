// Package ssh implements SSH local port forwarding so the reference
// backend can reach a PostgreSQL server behind a bastion host.
//
// The tunnel listens on a random loopback port and forwards every
// accepted connection through one SSH client. Only key-based
// authentication is supported (with optional passphrase). Host keys are
// verified against a known_hosts file when one is configured.
package ssh

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DachengChen/sqlchat/applog"
	"github.com/DachengChen/sqlchat/config"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Addr represents host:port of the local tunnel endpoint.
type Addr struct {
	Host string
	Port int
}

// dialTimeout bounds the TCP connect plus SSH handshake to the bastion.
const dialTimeout = 15 * time.Second

// keepaliveInterval is how often an idle tunnel pings the bastion.
const keepaliveInterval = 30 * time.Second

// Tunnel forwards a loopback port to the database host through a bastion.
type Tunnel struct {
	clientConfig *ssh.ClientConfig
	bastion      string // host:port of the SSH server
	target       string // host:port of PostgreSQL as seen from the bastion

	client   *ssh.Client
	listener net.Listener
	wg       sync.WaitGroup
	done     chan struct{}
	stopOnce sync.Once
	active   atomic.Int32
}

// NewTunnel prepares a tunnel to pgHost:pgPort. Nothing is dialed until Start.
func NewTunnel(cfg config.SSHConfig, pgHost string, pgPort int) (*Tunnel, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("ssh host is empty")
	}
	auth, err := buildAuthMethods(cfg)
	if err != nil {
		return nil, err
	}
	hostKeyCallback, err := buildHostKeyCallback(cfg)
	if err != nil {
		return nil, err
	}

	return &Tunnel{
		clientConfig: &ssh.ClientConfig{
			User:            cfg.User,
			Auth:            auth,
			HostKeyCallback: hostKeyCallback,
			Timeout:         dialTimeout,
		},
		bastion: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		target:  net.JoinHostPort(pgHost, strconv.Itoa(pgPort)),
		done:    make(chan struct{}),
	}, nil
}

// Start connects to the bastion and begins forwarding. It returns the
// loopback address pgx should use. ctx bounds the connect only.
func (t *Tunnel) Start(ctx context.Context) (*Addr, error) {
	client, err := t.dial(ctx)
	if err != nil {
		return nil, err
	}
	t.client = client

	t.listener, err = net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.client.Close()
		return nil, fmt.Errorf("local listen: %w", err)
	}

	port := t.listener.Addr().(*net.TCPAddr).Port
	applog.Event("ssh", "tunnel %s -> %s listening on 127.0.0.1:%d", t.bastion, t.target, port)

	t.wg.Add(2)
	go t.acceptLoop()
	go t.keepalive()

	return &Addr{Host: "127.0.0.1", Port: port}, nil
}

func (t *Tunnel) dial(ctx context.Context) (*ssh.Client, error) {
	d := net.Dialer{Timeout: dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", t.bastion)
	if err != nil {
		return nil, fmt.Errorf("ssh dial %s: %w", t.bastion, err)
	}

	// The handshake itself ignores ctx; a deadline keeps it bounded.
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(dialTimeout))
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, t.bastion, t.clientConfig)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake %s: %w", t.bastion, err)
	}
	_ = conn.SetDeadline(time.Time{})

	return ssh.NewClient(c, chans, reqs), nil
}

// Stop closes the listener and the SSH client and waits for forwards to
// finish. Safe to call more than once.
func (t *Tunnel) Stop() {
	t.stopOnce.Do(func() {
		close(t.done)
		if t.listener != nil {
			t.listener.Close()
		}
		if t.client != nil {
			t.client.Close()
		}
		t.wg.Wait()
		applog.Event("ssh", "tunnel to %s closed", t.target)
	})
}

// Active reports how many forwarded connections are open.
func (t *Tunnel) Active() int { return int(t.active.Load()) }

func (t *Tunnel) acceptLoop() {
	defer t.wg.Done()
	backoff := 5 * time.Millisecond
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			select {
			case <-t.done:
				return
			case <-time.After(backoff):
			}
			applog.Error("ssh: accept: %v", err)
			backoff = min(backoff*2, time.Second)
			continue
		}
		backoff = 5 * time.Millisecond
		t.wg.Add(1)
		go t.forward(conn)
	}
}

func (t *Tunnel) keepalive() {
	defer t.wg.Done()
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			if _, _, err := t.client.SendRequest("keepalive@openssh.com", true, nil); err != nil {
				applog.Error("ssh: keepalive to %s: %v", t.bastion, err)
			}
		}
	}
}

// forward copies in both directions until either side closes, then
// closes both so the other copy unblocks.
func (t *Tunnel) forward(local net.Conn) {
	defer t.wg.Done()
	t.active.Add(1)
	defer t.active.Add(-1)

	remote, err := t.client.Dial("tcp", t.target)
	if err != nil {
		local.Close()
		applog.Error("ssh: dial %s: %v", t.target, err)
		return
	}

	var once sync.Once
	closeBoth := func() {
		local.Close()
		remote.Close()
	}

	var copies sync.WaitGroup
	copies.Add(2)
	go func() {
		defer copies.Done()
		_, _ = io.Copy(remote, local)
		once.Do(closeBoth)
	}()
	go func() {
		defer copies.Done()
		_, _ = io.Copy(local, remote)
		once.Do(closeBoth)
	}()
	copies.Wait()
}

// buildAuthMethods creates SSH auth methods from config.
func buildAuthMethods(cfg config.SSHConfig) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if cfg.KeyPath != "" {
		keyBytes, err := os.ReadFile(cfg.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("read ssh key %s: %w", cfg.KeyPath, err)
		}

		var signer ssh.Signer
		if cfg.KeyPassphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(keyBytes, []byte(cfg.KeyPassphrase))
		} else {
			signer, err = ssh.ParsePrivateKey(keyBytes)
		}
		if err != nil {
			return nil, fmt.Errorf("parse ssh key: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}

	if len(methods) == 0 {
		return nil, fmt.Errorf("no SSH authentication methods configured (set database.ssh.key_path)")
	}

	return methods, nil
}

// buildHostKeyCallback verifies against known_hosts when configured and
// otherwise accepts any host key, logging that it did so.
func buildHostKeyCallback(cfg config.SSHConfig) (ssh.HostKeyCallback, error) {
	if cfg.KnownHostsPath == "" {
		applog.Event("ssh", "no known_hosts configured; host key for %s is not verified", cfg.Host)
		return ssh.InsecureIgnoreHostKey(), nil
	}
	cb, err := knownhosts.New(cfg.KnownHostsPath)
	if err != nil {
		return nil, fmt.Errorf("load known_hosts %s: %w", cfg.KnownHostsPath, err)
	}
	return cb, nil
}
