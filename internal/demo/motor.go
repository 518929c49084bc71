package demo

import (
	"fmt"
	"runtime"

	"github.com/vango-dev/cells/pkg/cell"
)

// MotorClass declares the cells of a Motor.
var MotorClass = cell.NewClass("motor", "temperature", "status", "fuel_pump")

// Motor switches itself off at 100 degrees and closes its fuel pump when
// it is off.
type Motor struct {
	*cell.Object

	Temperature cell.Cell[int]
	Status      cell.Cell[string]
	FuelPump    cell.Cell[string]
}

// NewMotor creates a motor at the given temperature.
func NewMotor(rt *cell.Runtime, temperature int) *Motor {
	obj := MotorClass.NewIn(rt)
	m := &Motor{
		Object:      obj,
		Temperature: cell.Of[int](obj, "temperature"),
		Status:      cell.Of[string](obj, "status"),
		FuelPump:    cell.Of[string](obj, "fuel_pump"),
	}

	m.Temperature.Set(temperature)
	m.Status.Calculate(func() string {
		if m.Temperature.Get() < 100 {
			return "on"
		}
		return "off"
	})
	m.FuelPump.Calculate(func() string {
		if m.Status.Get() == "on" {
			return "open"
		}
		return "closed"
	})
	return m
}

// TireClass declares the cells of a Tire.
var TireClass = cell.NewClass("tire", "turning")

// Tire turns while its motor is on.
type Tire struct {
	*cell.Object

	Turning cell.Cell[string]
}

// NewTire creates a tire driven by m.
func NewTire(rt *cell.Runtime, m *Motor) *Tire {
	obj := TireClass.NewIn(rt)
	t := &Tire{Object: obj, Turning: cell.Of[string](obj, "turning")}
	t.Turning.Calculate(func() string {
		if m.Status.Get() == "on" {
			return "yes"
		}
		return "no"
	})
	return t
}

// RunMotor drives a motor with four tires through a warm-up, an overheat
// and a cool-down, printing every change.
func RunMotor(env Env) error {
	out, rt := env.out(), env.runtime()

	m := NewMotor(rt, 50)
	handles := []*cell.Observer{
		m.Status.OnChange(nil, func(newValue, oldValue string) {
			fmt.Fprintf(out, "Motor status changing from %s to %s.\n", oldValue, newValue)
		}),
		m.FuelPump.OnChange(nil, func(newValue, oldValue string) {
			fmt.Fprintf(out, "Fuel pump changing from %s to %s.\n", oldValue, newValue)
		}),
		m.Temperature.OnChange(nil, func(newValue, oldValue int) {
			fmt.Fprintf(out, "Motor temperature changing from %d to %d.\n", oldValue, newValue)
		}),
		m.Temperature.OnChange(cell.Between(100, 1000), func(int, int) {
			fmt.Fprintln(out, "BOILING!")
		}),
	}

	tires := make([]*Tire, 4)
	for i := range tires {
		tires[i] = NewTire(rt, m)
		handles = append(handles, tires[i].Turning.OnChange(nil, func(newValue, _ string) {
			fmt.Fprintf(out, "Tire %d turning: %s\n", i, newValue)
		}))
	}

	err := cell.Catch(func() {
		for _, temperature := range []int{80, 110, 90} {
			m.Temperature.Set(temperature)
		}
	})

	// Tires are only reachable from here; their formulas and the observers
	// stop once they are collected.
	runtime.KeepAlive(tires)
	runtime.KeepAlive(handles)
	return err
}
