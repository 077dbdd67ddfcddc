/*
Package rabbitmq provides the RabbitMQ transport for the event bus.
Every event gets a fanout exchange named exactly after its declared message
name with a same-named queue bound to it; additional subscriber bindings add
their own queues to the exchange. Publishing shares one channel guarded by a
mutex, while each subscription consumes on its own channel, and the managed
connection reconnects with backoff.
*/
package rabbitmq
