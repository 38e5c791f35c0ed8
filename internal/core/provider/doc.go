// Package provider holds the pure side of applying a plan to a load balancer:
// settings validation and the ordered list of rule operations.
//
// This is part of the Functional Core - no I/O. The shell provider package
// turns Operations into cloud API calls.
package provider
