package pod

import (
	"fmt"
	"net"
	"strconv"
)

// Default container ports for the convenience accessors.
const (
	DefaultSSHPort     = 22
	DefaultJupyterPort = 8888
)

// Resolved is a running pod with its public endpoints, as returned by a
// successful ensure.
type Resolved struct {
	ID       string
	Name     string
	Image    string
	Status   Status
	PublicIP string
	Ports    map[int]Endpoint

	// SSHPort is the container port that serves SSH. Zero means DefaultSSHPort.
	SSHPort int
}

// NewResolved builds a Resolved pod from a ready record.
func NewResolved(r *Record, sshPort int) *Resolved {
	c := r.Clone()
	return &Resolved{
		ID:       c.ID,
		Name:     c.Name,
		Image:    c.Image,
		Status:   c.Status,
		PublicIP: c.PublicIP,
		Ports:    c.Ports,
		SSHPort:  sshPort,
	}
}

// TCPEndpoint returns the public endpoint of a container port.
func (p *Resolved) TCPEndpoint(containerPort int) (Endpoint, bool) {
	ep, ok := p.Ports[containerPort]
	return ep, ok
}

// SSHEndpoint returns the public endpoint of the SSH port.
func (p *Resolved) SSHEndpoint() (Endpoint, bool) {
	port := p.SSHPort
	if port == 0 {
		port = DefaultSSHPort
	}
	return p.TCPEndpoint(port)
}

// HTTPEndpoint returns the browser URL for a container port.
func (p *Resolved) HTTPEndpoint(containerPort int) (string, bool) {
	ep, ok := p.Ports[containerPort]
	if !ok {
		return "", false
	}
	return "http://" + ep.String(), true
}

// JupyterEndpoint returns the browser URL of the Jupyter port.
func (p *Resolved) JupyterEndpoint() (string, bool) {
	return p.HTTPEndpoint(DefaultJupyterPort)
}

// SSHCommand renders a ready-to-paste ssh command line for the pod.
func (p *Resolved) SSHCommand(user string) (string, bool) {
	ep, ok := p.SSHEndpoint()
	if !ok {
		return "", false
	}
	return fmt.Sprintf("ssh -p %d %s@%s", ep.Port, user, ep.Host), true
}

// String renders the endpoint as host:port.
func (e Endpoint) String() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}
