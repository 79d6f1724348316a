// Package units implements the five execution units the reservation
// station dispatches to: MSET, the TDMA loader/storer DMA engines, and
// the vector and systolic compute engines (spec.md §4.9-4.12).
package units

import "github.com/rvnpu/corenpu/des"

// PortCommit is the shared egress port name every unit uses to send its
// commit message back to the ROB; the ROB itself branches only on
// message Kind; the connector table, not the port name, decides which
// model a unit's emissions land on.
const PortCommit des.Port = "commit"
