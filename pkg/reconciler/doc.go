/*
Package reconciler runs periodic schema discovery so a schema file
dropped into the configured schema directory after startup is picked up
without a restart. It is stateless: each cycle re-derives what to do
from the registry's current state rather than remembering what the
previous cycle found.
*/
package reconciler
