package ratelimit_test

import (
	"fmt"
	"time"

	"callrate/pkg/logger"
	"callrate/pkg/ratelimit"
)

func ExampleGate_Default() {
	gate, err := ratelimit.New(ratelimit.WithRPS(5), ratelimit.WithLogger(logger.Nop()))
	if err != nil {
		panic(err)
	}

	policy, err := gate.Default()
	if err != nil {
		panic(err)
	}
	fmt.Println(policy.Interval())
	// Output: 200ms
}

func ExampleConfigure() {
	delay := 250 * time.Millisecond
	interval, err := ratelimit.Configure(nil, &delay)
	fmt.Println(interval, err)

	rps := 5.0
	_, err = ratelimit.Configure(&rps, &delay)
	fmt.Println(err)
	// Output:
	// 250ms <nil>
	// configuration error (rate): cannot specify both rps and delay
}
