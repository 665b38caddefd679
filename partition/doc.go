// Package partition implements the partition strategies of an entity.
//
// A Manager exists per model.PartitionType. Managers are pure: they validate
// a requested setup against the partitioning column, tell the caller how many
// groups and partitions to create and route values to partitions. They never
// touch the catalog.
//
// # Strategies
//
//   - NONE: a single group with a single partition
//   - HASH: one partition per group, rows are routed by xxhash of the value
//   - RANGE: one numeric interval per group plus an unbound catch-all group
//   - LIST: one value set per group plus an unbound catch-all group
//   - TEMPERATURE: a HOT and a COLD group, each holding several partitions
//     that are sub-partitioned by an internal strategy
//
// # Temperature Sizing
//
// For n partitions and a hot-in percentage p the HOT group receives
// max(1, n*p/100) partitions and the COLD group the rest. Moving partitions
// between the tiers is the job of an external periodic process; FrequencyPlan
// computes its plan from access counts.
package partition
