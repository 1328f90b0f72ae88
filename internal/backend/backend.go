package backend

// Server is an upstream endpoint the proxy forwards connections to.
type Server struct {
	address string
}

// NewServer returns a Server for a host:port address.
func NewServer(address string) Server {
	return Server{address: address}
}

// Address returns the host:port the server is dialed on.
func (s Server) Address() string {
	return s.address
}

func (s Server) String() string {
	return s.address
}

// Registry is an ordered list of servers. Duplicates are kept; an empty
// registry is valid and makes every selection report no backend.
type Registry struct {
	servers []Server
}

// NewRegistry builds a registry preserving the order of addresses.
func NewRegistry(addresses []string) *Registry {
	servers := make([]Server, 0, len(addresses))
	for _, addr := range addresses {
		servers = append(servers, NewServer(addr))
	}
	return &Registry{servers: servers}
}

// Len returns the number of registered servers.
func (r *Registry) Len() int {
	return len(r.servers)
}

// At returns the server at index i. It panics when i is out of range.
func (r *Registry) At(i int) Server {
	return r.servers[i]
}

// Servers returns a copy of the registered servers.
func (r *Registry) Servers() []Server {
	out := make([]Server, len(r.servers))
	copy(out, r.servers)
	return out
}

