package model

// Package model defines domain data structures used across the app: chart
// jobs, road maps and their sections, song sets, and status enums.
// Structures are designed for direct JSON binding in the web UI and explicit
// state transitions.
