package core

// Client is a canvas participant as seen by the core layer.
type Client struct {
	ID       string
	Name     string
	Commands chan *Command
	Events   chan *Event

	room string
	done chan struct{}
	err  error
}

// NewClient constructs a client with initialized channels.
func NewClient(id, name string) *Client {
	if name == "" {
		name = id
	}
	return &Client{
		ID:       id,
		Name:     name,
		Commands: make(chan *Command, 64),
		Events:   make(chan *Event, 256),
		done:     make(chan struct{}),
	}
}

// Err reports why the hub closed Events. It is nil for a regular
// unregister and must only be read after Events is closed.
func (c *Client) Err() error {
	return c.err
}

// Room returns the room the client has joined, or "" before joining.
func (c *Client) Room() string {
	return c.room
}
