package service

// Server is a coordinator exposed over the network.
type Server interface {
	Run() error
	Stop() error
}
