// Package native describes the call interface of the native robot daemon.
//
// Every native call is an Operation with a typed argument list checked
// against a Signature before it crosses the boundary:
//
//	Operation                  Params                                  Result
//	─────────────────────────────────────────────────────────────────────────
//	daemon_new                 -                                       daemon
//	daemon_set_write_callback  daemon, token                           -
//	daemon_deliver             daemon, bytes                           -
//	daemon_get_robot           daemon, string                          robot
//	daemon_connect_robot       daemon, robot, string, token            -
//	robot_set_led_color        robot, u8, u8, u8, token                -
//
// Handles are distinct Go types, so a DaemonHandle cannot be passed where a
// RobotHandle is expected. Strings and bytes occupy two core parameters
// (ptr, len); every other kind occupies one.
package native
