package main

import (
	"github.com/chazu/callsite/ir"
)

// demoArena builds the unit written by -example. The main script only uses
// the core classes, so it runs against a bare runtime once String#shout
// has been inlined.
func demoArena() *ir.Arena {
	a := ir.NewArena()
	object := a.Lookup("Object")

	// class String; def shout = upcase; end
	shout := a.NewMethod(a.Lookup("String"), "shout", false, nil, 0)
	shout.AddCall(ir.NewVariable("t"), ir.NewMethAddr("upcase"), ir.NewSelf(), nil, nil)

	// class Greeter
	//   def self.greet(name) = name + "!"
	//   def self.peek(x) = x.send("eval", "@secret")
	// end
	greeter := a.NewClass("Greeter", object)
	greet := a.NewMethod(greeter, "greet", true, []string{"name"}, 0)
	greet.AddCall(ir.NewVariable("g"), ir.NewMethAddr("+"), ir.NewVariable("name"), []ir.Operand{ir.NewString("!")}, nil)
	peek := a.NewMethod(greeter, "peek", true, []string{"x"}, 0)
	peek.AddCall(ir.NewVariable("v"), ir.NewMethAddr("send"), ir.NewVariable("x"),
		[]ir.Operand{ir.NewString("eval"), ir.NewString("@secret")}, nil)

	main := a.NewScript("main")
	m, r, n, p, q := ir.NewVariable("m"), ir.NewVariable("r"), ir.NewVariable("n"), ir.NewVariable("p"), ir.NewVariable("q")

	// m = :upcase; r = "hello".send(m)
	main.AddCopy(m, ir.NewMethAddr("upcase"))
	main.AddCall(r, m, ir.NewString("hello"), nil, nil)

	// n = 0; 4.times { |i| n = n + i }
	main.AddCopy(n, ir.NewFixnum(0))
	each := a.NewClosure(main, []string{"i"})
	each.AddCall(n, ir.NewMethAddr("+"), n, []ir.Operand{ir.NewVariable("i")}, nil)
	main.AddCall(nil, ir.NewMethAddr("times"), ir.NewFixnum(4), nil, ir.NewMetaObject(each))

	// p = Proc.new { |x| x * 2 }; q = p.call(n)
	double := a.NewClosure(main, []string{"x"})
	double.AddCall(double.NewTemporaryVariable(), ir.NewMethAddr("*"), ir.NewVariable("x"), []ir.Operand{ir.NewFixnum(2)}, nil)
	main.AddCall(p, ir.NewMethAddr("new"), ir.NewMetaObject(a.Lookup("Proc")), nil, ir.NewMetaObject(double))
	main.AddCall(q, ir.NewMethAddr("call"), p, []ir.Operand{n}, nil)

	// "callsite".shout
	main.AddCall(ir.NewVariable("s"), ir.NewMethAddr("shout"), ir.NewString("callsite"), nil, nil)

	reflect := a.NewScript("reflect")
	// Greeter.greet("you"); Greeter.peek(Greeter) { }; obj.send("eval", code)
	reflect.AddCall(ir.NewVariable("a"), ir.NewMethAddr("greet"), ir.NewMetaObject(greeter), []ir.Operand{ir.NewString("you")}, nil)
	reflect.AddCall(nil, ir.NewMethAddr("peek"), ir.NewMetaObject(greeter), []ir.Operand{ir.NewMetaObject(greeter)},
		ir.NewMetaObject(a.NewClosure(reflect, nil)))
	reflect.AddCall(nil, ir.NewMethAddr("send"), ir.NewVariable("obj"), []ir.Operand{ir.NewString("eval"), ir.NewVariable("code")}, nil)
	reflect.AddCall(ir.NewVariable("l"), ir.NewMethAddr("lambda"), ir.NewSelf(), nil, ir.NewSymbol("to_s"))

	return a
}
