/*
Package bus provides the command dispatcher, handler registry, event
publisher, and event subscriber shared by the banking services. The registry
is wired once at startup and sealed; dispatch and consumption then read it
without locking concerns. Transports stay behind the contract interfaces.
*/
package bus
