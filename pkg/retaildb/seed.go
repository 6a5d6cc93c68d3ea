// Package retaildb holds the reference retail schema and sample data used
// by the seed script and integration tests.
package retaildb

// SchemaDDL creates the retail tables in dependency order.
var SchemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS departments (
		department_id SERIAL PRIMARY KEY,
		department_name VARCHAR(100) NOT NULL,
		location VARCHAR(100)
	)`,
	`CREATE TABLE IF NOT EXISTS employees (
		employee_id SERIAL PRIMARY KEY,
		first_name VARCHAR(100) NOT NULL,
		last_name VARCHAR(100) NOT NULL,
		email VARCHAR(255),
		status VARCHAR(20) NOT NULL DEFAULT 'Active',
		salary NUMERIC(12, 2),
		hire_date DATE,
		department_id INTEGER REFERENCES departments(department_id)
	)`,
	`CREATE TABLE IF NOT EXISTS customers (
		customer_id SERIAL PRIMARY KEY,
		first_name VARCHAR(100) NOT NULL,
		last_name VARCHAR(100) NOT NULL,
		email VARCHAR(255),
		city VARCHAR(100),
		registration_date DATE NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		product_id SERIAL PRIMARY KEY,
		product_name VARCHAR(200) NOT NULL,
		category VARCHAR(100),
		unit_price NUMERIC(12, 2) NOT NULL,
		stock_quantity INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		order_id SERIAL PRIMARY KEY,
		customer_id INTEGER NOT NULL REFERENCES customers(customer_id),
		order_date DATE NOT NULL,
		total_amount NUMERIC(12, 2)
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		order_item_id SERIAL PRIMARY KEY,
		order_id INTEGER NOT NULL REFERENCES orders(order_id),
		product_id INTEGER NOT NULL REFERENCES products(product_id),
		quantity INTEGER NOT NULL,
		unit_price NUMERIC(12, 2) NOT NULL
	)`,
}

// SampleData populates the tables with a small, deterministic dataset.
var SampleData = []string{
	`INSERT INTO departments (department_name, location) VALUES
		('IT', 'Nairobi'),
		('Sales', 'Mombasa'),
		('Finance', 'Nairobi'),
		('Operations', 'Kisumu')`,
	`INSERT INTO employees (first_name, last_name, email, status, salary, hire_date, department_id) VALUES
		('Amina', 'Odhiambo', 'amina.odhiambo@example.com', 'Active', 95000.00, '2021-03-15', 1),
		('Brian', 'Mwangi', 'brian.mwangi@example.com', 'Active', 82000.00, '2022-01-10', 1),
		('Carol', 'Njeri', 'carol.njeri@example.com', 'Inactive', 78000.00, '2019-07-01', 1),
		('David', 'Kiprop', 'david.kiprop@example.com', 'Active', 64000.00, '2020-11-23', 2),
		('Esther', 'Wanjiku', 'esther.wanjiku@example.com', 'Active', 71000.00, '2023-02-14', 3),
		('Felix', 'Otieno', 'felix.otieno@example.com', 'Active', 58000.00, '2023-06-30', 4)`,
	`INSERT INTO customers (first_name, last_name, email, city, registration_date) VALUES
		('Grace', 'Mutua', 'grace.mutua@example.com', 'Nairobi', '2024-01-08'),
		('Hassan', 'Ali', 'hassan.ali@example.com', 'Mombasa', '2024-01-22'),
		('Irene', 'Chebet', 'irene.chebet@example.com', 'Eldoret', '2024-02-05'),
		('James', 'Omondi', 'james.omondi@example.com', 'Kisumu', '2024-02-19'),
		('Khadija', 'Noor', 'khadija.noor@example.com', 'Nairobi', '2024-03-03'),
		('Lucy', 'Wairimu', 'lucy.wairimu@example.com', 'Nakuru', '2024-03-27')`,
	`INSERT INTO products (product_name, category, unit_price, stock_quantity) VALUES
		('Wireless Mouse', 'Electronics', 1500.00, 120),
		('Mechanical Keyboard', 'Electronics', 6500.00, 45),
		('Office Chair', 'Furniture', 18000.00, 12),
		('Standing Desk', 'Furniture', 42000.00, 8),
		('Notebook Pack', 'Stationery', 450.00, 300)`,
	`INSERT INTO orders (customer_id, order_date, total_amount) VALUES
		(1, '2024-02-01', 8000.00),
		(2, '2024-02-15', 18000.00),
		(3, '2024-03-01', 1500.00),
		(1, '2024-03-20', 42450.00),
		(5, '2024-04-02', 6500.00)`,
	`INSERT INTO order_items (order_id, product_id, quantity, unit_price) VALUES
		(1, 1, 1, 1500.00),
		(1, 2, 1, 6500.00),
		(2, 3, 1, 18000.00),
		(3, 1, 1, 1500.00),
		(4, 4, 1, 42000.00),
		(4, 5, 1, 450.00),
		(5, 2, 1, 6500.00)`,
}
