// Package commander drives SO-101 arms through the LeRobot toolkit and
// augments the datasets recorded with them.
//
// # Installation
//
//	go install github.com/lehungry-robotum/commander/cmd/commander@latest
//	go install github.com/lehungry-robotum/commander/cmd/augment@latest
//
// # Usage
//
// Start the interactive menu to find the arm ports, calibrate, teleoperate
// and record:
//
//	commander
//
// Each menu entry is also available as a command, e.g.
//
//	commander find-port
//	commander record
//
// Multiply a recorded dataset by paraphrases of its task descriptions and
// publish it as <repo>-augmented:
//
//	augment --repo lehungry-robotum/sebas_test
//
// # Packages
//
//   - cmd/commander: menu and commands wrapping the toolkit executables
//   - cmd/augment: task paraphrasing, review and publishing
//   - pkg/config: config.json and .env persistence, secrets
//   - pkg/portfind: unplug/replug port detection
//   - pkg/dispatch: toolkit command lines and child process outcomes
//   - pkg/hub: dataset hub client
//   - pkg/llm: chat completion paraphrases
//   - pkg/augment: review state machine and row expansion
//   - pkg/dataset: parquet batches and the local dataset cache
//   - pkg/robot, pkg/monitor: servo bus access and the live joint monitor
package commander
