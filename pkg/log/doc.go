/*
Package log provides structured logging for DataFold using zerolog.

All logs include timestamps and support filtering by severity. Component
loggers attach a "component" field (WithComponent) or an entity identifier
(WithSchema, WithRef, WithAtom) so log lines can be grepped per schema or
per atom chain without parsing messages.

Init(cfg) sets the global Logger once at startup from the configured log
level; everything else in the core calls log.WithComponent("atom"),
log.WithComponent("schema"), etc. and logs through the returned
zerolog.Logger.
*/
package log
