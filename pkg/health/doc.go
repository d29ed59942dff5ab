/*
Package health provides a small Checker interface plus Config and
consecutive-failure Status types, with checkers for the engine's own
dependencies: storage reachability and atom/ref consistency.

There is no container or task to probe here, so StorageChecker and
ConsistencyChecker are the only checkers. pkg/engine runs each of them
once per Engine.Health call and does not use Config or Status; the
periodic loop lives in the CLI's serve command.
*/
package health
